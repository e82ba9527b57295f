package forward

import (
	"io"
	"net"

	"socksfwd/pkg/socks"
)

// relay copies one direction until a terminal condition, then stops the
// whole session so the peer direction unblocks. Each direction owns its
// chunk; within a direction bytes reach the destination in source order.
func (s *Session) relay(dir string, src, dst net.Conn) {
	defer s.Stop()

	chunk := socks.NewChunk()
	for {
		n, err := src.Read(chunk)
		if n > 0 {
			if werr := writeAll(dst, chunk[:n]); werr != nil {
				if isClosed(werr) {
					s.log.Debug().Err(werr).Str("dir", dir).Msg("relay write cancelled")
				} else {
					s.log.Error().Err(werr).Str("dir", dir).Msg("relay write failed")
				}
				return
			}
		}
		if err != nil {
			switch {
			case isEOF(err):
				s.log.Debug().Str("dir", dir).Msg("end of stream")
			case isClosed(err):
				s.log.Debug().Err(err).Str("dir", dir).Msg("relay read cancelled")
			default:
				s.log.Error().Err(err).Str("dir", dir).Msg("relay read failed")
			}
			return
		}
	}
}

// writeAll writes p in full, retrying short writes until every byte is
// out. No byte is lost or duplicated.
func writeAll(w io.Writer, p []byte) error {
	for offset := 0; offset < len(p); {
		n, err := w.Write(p[offset:])
		if err != nil {
			return err
		}
		offset += n
	}
	return nil
}
