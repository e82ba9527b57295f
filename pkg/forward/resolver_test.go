package forward

import (
	"context"
	"testing"
)

func TestSystemResolverLiteral(t *testing.T) {
	tests := []struct {
		name string
		host string
		port uint16
		want string
	}{
		{name: "IPv4 literal", host: "127.0.0.1", port: 1080, want: "127.0.0.1:1080"},
		{name: "IPv6 literal", host: "::1", port: 1080, want: "[::1]:1080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			endpoints, err := SystemResolver{}.Resolve(context.Background(), tt.host, tt.port)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if len(endpoints) != 1 || endpoints[0] != tt.want {
				t.Fatalf("endpoints = %v, want [%s]", endpoints, tt.want)
			}
		})
	}
}

func TestDNSResolverLiteralShortCircuits(t *testing.T) {
	// An IP literal must never hit the wire, even with an unreachable server.
	r := NewDNSResolver("192.0.2.1:53")
	endpoints, err := r.Resolve(context.Background(), "10.1.2.3", 8080)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(endpoints) != 1 || endpoints[0] != "10.1.2.3:8080" {
		t.Fatalf("endpoints = %v", endpoints)
	}
}

func TestNewDNSResolverDefaultPort(t *testing.T) {
	if r := NewDNSResolver("192.0.2.1"); r.Server != "192.0.2.1:53" {
		t.Fatalf("server = %q, want default DNS port appended", r.Server)
	}
	if r := NewDNSResolver("192.0.2.1:5353"); r.Server != "192.0.2.1:5353" {
		t.Fatalf("server = %q, explicit port must be kept", r.Server)
	}
}
