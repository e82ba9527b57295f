package socks

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Greeting returns the client greeting offering the NoAuth method only.
//
// The greeting format is:
//
//	+-----+----------+----------+
//	| VER | NMETHODS | METHODS  |
//	+-----+----------+----------+
//	|  1  |    1     | 1 to 255 |
func Greeting() []byte {
	return []byte{Version5, 0x01, NoAuth}
}

// ReadMethodSelection reads the server's 2-byte method selection and
// requires the NoAuth method. A read that ends after one byte is reported as
// io.ErrUnexpectedEOF and one that ends before any byte as io.EOF, so the
// caller can treat either as an end-of-file condition.
func ReadMethodSelection(r io.Reader) error {
	var sel [2]byte
	if _, err := io.ReadFull(r, sel[:]); err != nil {
		return fmt.Errorf("read method selection: %w", err)
	}
	if sel[0] != Version5 {
		return ErrBadVersion
	}
	if sel[1] != NoAuth {
		return ErrMethodRejected
	}
	return nil
}

// ConnectRequest encodes a CONNECT request for the given destination.
//
// The request format is:
//
//	+-----+-----+-----+------+----------+----------+
//	| VER | CMD | RSV | ATYP | DST.ADDR | DST.PORT |
//	+-----+-----+-----+------+----------+----------+
//	|  1  |  1  |  1  |  1   | Variable |    2     |
func ConnectRequest(addr Addr, port uint16) ([]byte, error) {
	n := addr.wireLen()
	if n == 0 {
		return nil, ErrBadAddressType
	}

	req := make([]byte, 3+n+2)
	req[0] = Version5
	req[1] = Connect
	req[2] = 0x00

	cursor := 3
	switch addr.Type {
	case AddrIPv4:
		req[cursor] = ATypIPv4
		cursor++
		cursor += copy(req[cursor:], addr.IPv4[:])
	case AddrIPv6:
		req[cursor] = ATypIPv6
		cursor++
		cursor += copy(req[cursor:], addr.IPv6[:])
	case AddrFQDN:
		if addr.FQDN == "" {
			return nil, ErrEmptyDomain
		}
		if len(addr.FQDN) > MaxDomainLen {
			return nil, ErrDomainTooLong
		}
		req[cursor] = ATypDomain
		cursor++
		req[cursor] = byte(len(addr.FQDN))
		cursor++
		cursor += copy(req[cursor:], addr.FQDN)
	}

	binary.BigEndian.PutUint16(req[cursor:], port)
	return req, nil
}

// ReadConnectReply reads and validates the server's CONNECT reply.
//
// The reply format is:
//
//	+-----+-----+-----+------+----------+----------+
//	| VER | REP | RSV | ATYP | BND.ADDR | BND.PORT |
//	+-----+-----+-----+------+----------+----------+
//	|  1  |  1  |  1  |  1   | Variable |    2     |
//
// The bound address is not used, but it is consumed in full so that no
// reply bytes are left buffered in front of relay data.
func ReadConnectReply(r io.Reader) error {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return fmt.Errorf("read reply header: %w", err)
	}
	if hdr[0] != Version5 {
		return ErrBadVersion
	}
	if hdr[1] != Succeeded {
		if msg, ok := ReplyString[hdr[1]]; ok {
			return fmt.Errorf("%w: %s", ErrReplyFailure, msg)
		}
		return ErrReplyFailure
	}

	var bound int
	switch hdr[3] {
	case ATypIPv4:
		bound = 4
	case ATypIPv6:
		bound = 16
	case ATypDomain:
		var dlen [1]byte
		if _, err := io.ReadFull(r, dlen[:]); err != nil {
			return fmt.Errorf("read bound domain length: %w", err)
		}
		bound = int(dlen[0])
	default:
		return ErrBadAddressType
	}

	tail := make([]byte, bound+2)
	if _, err := io.ReadFull(r, tail); err != nil {
		return fmt.Errorf("read bound address: %w", err)
	}
	return nil
}
