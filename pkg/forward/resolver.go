// Package forward implements the forwarding engine: upstream resolution,
// the per-connection session state machine, the bidirectional relay, and
// the accepting server.
package forward

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/miekg/dns"
)

// Resolver produces the ordered candidate endpoints for the upstream
// proxy. Endpoints are dial-ready "host:port" strings; a session tries
// them front to back.
type Resolver interface {
	Resolve(ctx context.Context, host string, port uint16) ([]string, error)
}

// SystemResolver resolves through the operating system resolver.
// IP literals short-circuit without a lookup.
type SystemResolver struct{}

func (SystemResolver) Resolve(ctx context.Context, host string, port uint16) ([]string, error) {
	p := strconv.Itoa(int(port))
	if ip := net.ParseIP(host); ip != nil {
		return []string{net.JoinHostPort(host, p)}, nil
	}

	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return nil, err
	}
	endpoints := make([]string, 0, len(addrs))
	for _, a := range addrs {
		endpoints = append(endpoints, net.JoinHostPort(a, p))
	}
	return endpoints, nil
}

// DNSResolver queries one DNS server directly instead of going through
// the system resolver. Answer order is preserved, A records before AAAA.
type DNSResolver struct {
	Server string // "host:port" of the DNS server
	client dns.Client
}

// NewDNSResolver creates a resolver for the given server address.
// A bare host gets the standard DNS port appended.
func NewDNSResolver(server string) *DNSResolver {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	return &DNSResolver{Server: server}
}

func (r *DNSResolver) Resolve(ctx context.Context, host string, port uint16) ([]string, error) {
	p := strconv.Itoa(int(port))
	if ip := net.ParseIP(host); ip != nil {
		return []string{net.JoinHostPort(host, p)}, nil
	}

	var endpoints []string
	var firstErr error
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		m := new(dns.Msg)
		m.SetQuestion(dns.Fqdn(host), qtype)
		m.RecursionDesired = true

		in, _, err := r.client.ExchangeContext(ctx, m, r.Server)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, ans := range in.Answer {
			switch rr := ans.(type) {
			case *dns.A:
				endpoints = append(endpoints, net.JoinHostPort(rr.A.String(), p))
			case *dns.AAAA:
				endpoints = append(endpoints, net.JoinHostPort(rr.AAAA.String(), p))
			}
		}
	}

	if len(endpoints) == 0 {
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, fmt.Errorf("no address records for %s", host)
	}
	return endpoints, nil
}
