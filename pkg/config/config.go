// Package config loads and validates the process-wide configuration from
// command-line flags and an optional YAML file. The result is immutable
// after Load and threaded into the server and every session by reference.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"socksfwd/pkg/socks"
)

// LogConfig holds optional log output settings. An empty Filename means
// console output on stderr.
type LogConfig struct {
	Filename   string `yaml:"Filename,omitempty"`
	MaxSize    int    `yaml:"MaxSize,omitempty"` // megabytes
	MaxBackups int    `yaml:"MaxBackups,omitempty"`
	MaxAge     int    `yaml:"MaxAge,omitempty"` // days
	Compress   bool   `yaml:"Compress,omitempty"`
	Level      string `yaml:"Level,omitempty"`
}

// Config is the process-wide configuration.
type Config struct {
	ListenPort   uint16    `yaml:"ListenPort"`
	UpstreamHost string    `yaml:"Socks5Host"`
	UpstreamPort uint16    `yaml:"Socks5Port"`
	TargetHost   string    `yaml:"HttpHost"`
	TargetPort   uint16    `yaml:"HttpPort"`
	DNSServer    string    `yaml:"DnsServer,omitempty"`
	Log          LogConfig `yaml:"Log,omitempty"`

	// Target is the classified form of TargetHost, filled by Validate.
	Target socks.Addr `yaml:"-"`
}

// Load parses flags, merges an optional YAML file (explicit flags win),
// applies defaults, and validates. It returns flag.ErrHelp when usage
// was requested or no arguments were given at all.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("socksfwd", flag.ContinueOnError)
	var (
		file       string
		listenPort uint
		s5Host     string
		s5Port     uint
		httpHost   string
		httpPort   uint
		dnsServer  string
	)
	fs.StringVar(&file, "config", "", "load settings from a YAML `file`")
	fs.UintVar(&listenPort, "p", 0, "listen to the `port`")
	fs.UintVar(&listenPort, "port", 0, "listen to the `port`")
	fs.StringVar(&s5Host, "socks5-host", "", "SOCKS5 `host`")
	fs.UintVar(&s5Port, "socks5-port", 0, "SOCKS5 `port`")
	fs.StringVar(&httpHost, "http-host", "", "forward to this `host`")
	fs.UintVar(&httpPort, "http-port", 0, "forward to this `port`")
	fs.StringVar(&dnsServer, "dns-server", "",
		"resolve the SOCKS5 host via this DNS `server` instead of the system resolver")

	if len(args) == 0 {
		fmt.Fprintf(fs.Output(), "Usage of %s:\n", fs.Name())
		fs.PrintDefaults()
		return nil, flag.ErrHelp
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	for _, p := range []struct {
		name  string
		value uint
	}{
		{"port", listenPort},
		{"socks5-port", s5Port},
		{"http-port", httpPort},
	} {
		if p.value > 65535 {
			return nil, fmt.Errorf("invalid argument: --%s out of range", p.name)
		}
	}

	cfg := &Config{}
	if file != "" {
		if err := cfg.loadFile(file); err != nil {
			return nil, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "p", "port":
			cfg.ListenPort = uint16(listenPort)
		case "socks5-host":
			cfg.UpstreamHost = s5Host
		case "socks5-port":
			cfg.UpstreamPort = uint16(s5Port)
		case "http-host":
			cfg.TargetHost = httpHost
		case "http-port":
			cfg.TargetPort = uint16(httpPort)
		case "dns-server":
			cfg.DNSServer = dnsServer
		}
	})

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// setDefaults fills log rotation defaults when a log file is configured.
func (c *Config) setDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Filename == "" {
		return
	}
	if c.Log.MaxSize == 0 {
		c.Log.MaxSize = 20
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 5
	}
	if c.Log.MaxAge == 0 {
		c.Log.MaxAge = 28
	}
}

// Validate checks required fields and classifies the target host,
// accumulating every problem into one error so the operator sees the
// full list at once.
func (c *Config) Validate() error {
	var sb strings.Builder
	if c.ListenPort == 0 {
		sb.WriteString("missing <port>\n")
	}
	if c.UpstreamHost == "" {
		sb.WriteString("missing <socks5_host>\n")
	}
	if c.UpstreamPort == 0 {
		sb.WriteString("missing <socks5_port>\n")
	}
	if c.TargetPort == 0 {
		sb.WriteString("missing <http_port>\n")
	}

	addr, err := socks.ParseAddr(c.TargetHost)
	if err != nil {
		sb.WriteString("invalid <http_host>\n")
	} else {
		c.Target = addr
	}

	if sb.Len() > 0 {
		return errors.New(strings.TrimRight(sb.String(), "\n"))
	}
	return nil
}
