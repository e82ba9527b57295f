package config

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"socksfwd/pkg/socks"
)

func TestLoadValid(t *testing.T) {
	cfg, err := Load([]string{
		"-p", "1080",
		"--socks5-host", "proxy.internal",
		"--socks5-port", "1081",
		"--http-host", "example.com",
		"--http-port", "443",
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenPort != 1080 {
		t.Errorf("ListenPort = %d", cfg.ListenPort)
	}
	if cfg.UpstreamHost != "proxy.internal" || cfg.UpstreamPort != 1081 {
		t.Errorf("upstream = %s:%d", cfg.UpstreamHost, cfg.UpstreamPort)
	}
	if cfg.TargetPort != 443 {
		t.Errorf("TargetPort = %d", cfg.TargetPort)
	}
	if cfg.Target.Type != socks.AddrFQDN || cfg.Target.FQDN != "example.com" {
		t.Errorf("Target = %+v", cfg.Target)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level default = %q", cfg.Log.Level)
	}
}

func TestLoadClassifiesTargetHost(t *testing.T) {
	tests := []struct {
		host string
		want socks.AddrType
	}{
		{host: "127.0.0.1", want: socks.AddrIPv4},
		{host: "2001:db8::1", want: socks.AddrIPv6},
		{host: "internal.service", want: socks.AddrFQDN},
	}

	for _, tt := range tests {
		cfg, err := Load([]string{
			"-p", "1080",
			"--socks5-host", "proxy",
			"--socks5-port", "1081",
			"--http-host", tt.host,
			"--http-port", "80",
		})
		if err != nil {
			t.Fatalf("Load(%q): %v", tt.host, err)
		}
		if cfg.Target.Type != tt.want {
			t.Errorf("Target.Type for %q = %d, want %d", tt.host, cfg.Target.Type, tt.want)
		}
	}
}

func TestLoadAccumulatesProblems(t *testing.T) {
	_, err := Load([]string{"--socks5-host", "proxy"})
	if err == nil {
		t.Fatal("expected validation error")
	}

	msg := err.Error()
	for _, want := range []string{
		"missing <port>",
		"missing <socks5_port>",
		"missing <http_port>",
		"invalid <http_host>",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %q", msg, want)
		}
	}
	if strings.Contains(msg, "missing <socks5_host>") {
		t.Errorf("error %q complains about a provided field", msg)
	}
}

func TestLoadHelp(t *testing.T) {
	if _, err := Load([]string{"-h"}); !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("got %v, want flag.ErrHelp", err)
	}
	if _, err := Load(nil); !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("no args: got %v, want flag.ErrHelp", err)
	}
}

func TestLoadPortOutOfRange(t *testing.T) {
	_, err := Load([]string{
		"-p", "70000",
		"--socks5-host", "proxy",
		"--socks5-port", "1081",
		"--http-host", "example.com",
		"--http-port", "80",
	})
	if err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("got %v, want out-of-range error", err)
	}
}

func TestLoadFileWithFlagOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "socksfwd.yaml")
	data := `
ListenPort: 1080
Socks5Host: proxy.internal
Socks5Port: 1081
HttpHost: 10.0.0.5
HttpPort: 80
Log:
  Filename: /var/log/socksfwd.log
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load([]string{"--config", path, "--http-port", "8080"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.UpstreamHost != "proxy.internal" {
		t.Errorf("UpstreamHost = %q", cfg.UpstreamHost)
	}
	if cfg.TargetPort != 8080 {
		t.Errorf("TargetPort = %d, flag must override the file", cfg.TargetPort)
	}
	if cfg.Target.Type != socks.AddrIPv4 {
		t.Errorf("Target.Type = %d", cfg.Target.Type)
	}

	// Rotation defaults apply once a log file is configured.
	if cfg.Log.MaxSize != 20 || cfg.Log.MaxBackups != 5 || cfg.Log.MaxAge != 28 {
		t.Errorf("log defaults = %+v", cfg.Log)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load([]string{"--config", "/nonexistent/socksfwd.yaml"}); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
