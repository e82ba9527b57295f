package socks

import (
	"fmt"
	"net"
)

// AddrType discriminates the three address encodings of RFC 1928 Section 4.
type AddrType int

const (
	AddrUnknown AddrType = iota
	AddrIPv4
	AddrIPv6
	AddrFQDN
)

// Addr is a SOCKS5 destination address. Exactly one payload field is
// meaningful, selected by Type.
type Addr struct {
	Type AddrType
	IPv4 [4]byte
	IPv6 [16]byte
	FQDN string
}

// ParseAddr classifies a host string as an IPv4 literal, an IPv6 literal,
// or a fully qualified domain name. Anything that does not parse as an IP
// is treated as an FQDN, which must be 1-255 bytes long.
func ParseAddr(host string) (Addr, error) {
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			var a Addr
			a.Type = AddrIPv4
			copy(a.IPv4[:], v4)
			return a, nil
		}
		var a Addr
		a.Type = AddrIPv6
		copy(a.IPv6[:], ip.To16())
		return a, nil
	}

	if host == "" {
		return Addr{}, ErrEmptyDomain
	}
	if len(host) > MaxDomainLen {
		return Addr{}, ErrDomainTooLong
	}
	return Addr{Type: AddrFQDN, FQDN: host}, nil
}

// String renders the address the way net.Dial expects a host,
// with IPv6 literals unbracketed.
func (a Addr) String() string {
	switch a.Type {
	case AddrIPv4:
		return net.IP(a.IPv4[:]).String()
	case AddrIPv6:
		return net.IP(a.IPv6[:]).String()
	case AddrFQDN:
		return a.FQDN
	default:
		return fmt.Sprintf("unknown(%d)", int(a.Type))
	}
}

// wireLen returns the encoded size of ATYP + DST.ADDR for this address.
func (a Addr) wireLen() int {
	switch a.Type {
	case AddrIPv4:
		return 1 + 4
	case AddrIPv6:
		return 1 + 16
	case AddrFQDN:
		return 1 + 1 + len(a.FQDN)
	default:
		return 0
	}
}
