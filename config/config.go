// Package config loads the engine configuration from JSON, or YAML when
// the file extension says so, and turns the raw form into the runtime
// view the workers consume.
package config

import (
	"encoding/json"
	"net/netip"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/ngx-proxy/forward-engine/common/errs"
	"github.com/ngx-proxy/forward-engine/constant"
	"github.com/ngx-proxy/forward-engine/log"
)

// HostPort is one backend address in the raw configuration.
type HostPort struct {
	Host string `json:"host" yaml:"host"`
	Port uint16 `json:"port" yaml:"port"`
}

// RawAgent mirrors the "agent" object: an optional addressable default
// backend, the host name it is keyed under, and the reverse map proper.
type RawAgent struct {
	Addressable *HostPort `json:"addressable" yaml:"addressable"`
	Positive    struct {
		Host string `json:"host" yaml:"host"`
	} `json:"positive" yaml:"positive"`
	ReverseMap map[string]HostPort `json:"reverse_map" yaml:"reverse_map"`
}

// RawConfig is the on-disk shape before validation.
type RawConfig struct {
	Port        uint16       `json:"port" yaml:"port"`
	Certificate string       `json:"certificate" yaml:"certificate"`
	PrivateKey  string       `json:"private-key" yaml:"private-key"`
	Threads     int          `json:"threads" yaml:"threads"`
	LogLevel    log.LogLevel `json:"log-level" yaml:"log-level"`
	DNS         struct {
		Nameserver string `json:"nameserver" yaml:"nameserver"`
	} `json:"dns" yaml:"dns"`
	Blacklist struct {
		IPs     []string `json:"ips" yaml:"ips"`
		Domains []string `json:"domains" yaml:"domains"`
	} `json:"blacklist" yaml:"blacklist"`
	Agent RawAgent `json:"agent" yaml:"agent"`
}

// Config is the validated runtime view.
type Config struct {
	Port             uint16
	Certificate      string
	PrivateKey       string
	Threads          int
	LogLevel         log.LogLevel
	Nameserver       string
	BlacklistIPs     []string
	BlacklistDomains []string
	ReverseMap       map[string]constant.Endpoint
}

// Parse loads and validates the file at path. A missing path yields the
// built-in defaults.
func Parse(path string) (*Config, error) {
	if path == "" {
		return build(defaultRaw()), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Security("read configuration %s: %v", path, err)
	}
	return ParseBytes(data, filepath.Ext(path))
}

// ParseBytes decodes data as YAML when ext is .yaml or .yml, JSON
// otherwise.
func ParseBytes(data []byte, ext string) (*Config, error) {
	raw := defaultRaw()
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errs.Security("parse configuration: %v", err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, errs.Security("parse configuration: %v", err)
		}
	}
	return build(raw), nil
}

func defaultRaw() RawConfig {
	raw := RawConfig{
		Port:     8080,
		Threads:  1,
		LogLevel: log.INFO,
	}
	raw.Agent.Positive.Host = "localhost"
	return raw
}

func build(raw RawConfig) *Config {
	reverse := make(map[string]constant.Endpoint)
	if raw.Agent.Addressable != nil {
		if ep, ok := endpointOf(*raw.Agent.Addressable); ok {
			key := raw.Agent.Positive.Host
			if key == "" {
				key = "localhost"
			}
			reverse[key] = ep
		}
	}
	// Backends must be IP literals; anything else is skipped silently.
	valid := lo.PickBy(raw.Agent.ReverseMap, func(_ string, hp HostPort) bool {
		_, err := netip.ParseAddr(hp.Host)
		return err == nil
	})
	for host, ep := range lo.MapEntries(valid, func(host string, hp HostPort) (string, constant.Endpoint) {
		addr, _ := netip.ParseAddr(hp.Host)
		return host, constant.NewEndpoint(addr, hp.Port)
	}) {
		reverse[host] = ep
	}

	threads := raw.Threads
	if threads < 1 {
		threads = 1
	}
	return &Config{
		Port:             raw.Port,
		Certificate:      raw.Certificate,
		PrivateKey:       raw.PrivateKey,
		Threads:          threads,
		LogLevel:         raw.LogLevel,
		Nameserver:       raw.DNS.Nameserver,
		BlacklistIPs:     raw.Blacklist.IPs,
		BlacklistDomains: raw.Blacklist.Domains,
		ReverseMap:       reverse,
	}
}

func endpointOf(hp HostPort) (constant.Endpoint, bool) {
	addr, err := netip.ParseAddr(hp.Host)
	if err != nil {
		return constant.Endpoint{}, false
	}
	return constant.NewEndpoint(addr, hp.Port), true
}
