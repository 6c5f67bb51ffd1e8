// Package config loads the server's configuration surface (spec.md §6)
// from a YAML file and ADNS_-prefixed environment variables, using
// github.com/spf13/viper. CLI flag parsing beyond the config file's own
// path is explicitly out of scope.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Protocol selects which socket the server loop binds.
type Protocol string

const (
	ProtocolUDP  Protocol = "udp"
	ProtocolTCP  Protocol = "tcp"
	ProtocolBoth Protocol = "both"
)

// Config is the recognized server configuration surface (spec.md §6).
type Config struct {
	Protocol Protocol      `mapstructure:"protocol"`
	Port     int           `mapstructure:"port"`
	Zones    ZonesConfig   `mapstructure:"zones"`
	Forward  ForwardConfig `mapstructure:"forward"`
	Policy   PolicyConfig  `mapstructure:"policy"`
}

// PolicyConfig holds server-layer policy choices that spec.md leaves as
// Open Questions rather than fixed behavior.
type PolicyConfig struct {
	// SynthesizeHINFOOnANY answers ANY queries at a name with no other
	// records with a synthesized "RFC8482" HINFO record (RFC 8482),
	// instead of an empty NOERROR answer. Off by default.
	SynthesizeHINFOOnANY bool `mapstructure:"synthesize_hinfo_on_any"`
}

// ZonesConfig points at the master-file directory the zone store loads.
type ZonesConfig struct {
	Directory string `mapstructure:"directory"`
}

// ForwardConfig controls whether and how unresolved queries are forwarded
// upstream. Upstream empty means forwarding is disabled and the server
// answers REFUSED instead (spec.md §6).
type ForwardConfig struct {
	Upstream  string `mapstructure:"upstream"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

// Timeout converts TimeoutMS to a time.Duration, defaulting to 5s per
// spec.md §5 when unset.
func (f ForwardConfig) Timeout() time.Duration {
	if f.TimeoutMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(f.TimeoutMS) * time.Millisecond
}

// Enabled reports whether forwarding is configured at all.
func (f ForwardConfig) Enabled() bool {
	return f.Upstream != ""
}

// Load reads path (a YAML file) and overlays ADNS_-prefixed environment
// variables (e.g. ADNS_PORT, ADNS_ZONES_DIRECTORY) on top of it, applying
// the defaults from spec.md §6 for anything left unset.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("ADNS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("protocol", string(ProtocolUDP))
	v.SetDefault("port", 53)
	v.SetDefault("forward.timeout_ms", 5000)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Protocol {
	case ProtocolUDP, ProtocolTCP, ProtocolBoth:
	default:
		return fmt.Errorf("config: protocol must be one of udp, tcp, both (got %q)", c.Protocol)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port out of range: %d", c.Port)
	}
	if c.Zones.Directory == "" {
		return fmt.Errorf("config: zones.directory is required")
	}
	return nil
}
