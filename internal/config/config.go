package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Sources SourcesConfig `yaml:"sources"`
	// FragmentTimeout bounds how long an incomplete multi-part group may
	// wait for its remaining fragments.
	FragmentTimeout time.Duration `yaml:"fragment_timeout"`
	Web             WebConfig     `yaml:"web"`
	UDP             UDPConfig     `yaml:"udp"`
	NATS            NATSConfig    `yaml:"nats"`
	Track           TrackConfig   `yaml:"track"`
}

type SourcesConfig struct {
	Collector FeedConfig `yaml:"collector"`
	Local     FeedConfig `yaml:"local"`
}

type FeedConfig struct {
	Host                 string        `yaml:"host"`
	Port                 int           `yaml:"port"`
	Enabled              bool          `yaml:"enabled"`
	Reconnect            bool          `yaml:"reconnect"`
	ReconnectInterval    time.Duration `yaml:"reconnect_interval"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
}

type WebConfig struct {
	Listen string `yaml:"listen"`
}

type UDPConfig struct {
	Enable bool   `yaml:"enable"`
	Dest   string `yaml:"dest"`
}

type NATSConfig struct {
	Enable        bool   `yaml:"enable"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type TrackConfig struct {
	MaxVessels int           `yaml:"max_vessels"`
	TTL        time.Duration `yaml:"ttl"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if !cfg.Sources.Collector.Enabled && !cfg.Sources.Local.Enabled {
		return Config{}, fmt.Errorf("at least one source must be enabled")
	}
	if err := validateFeed("collector", cfg.Sources.Collector); err != nil {
		return Config{}, err
	}
	if err := validateFeed("local", cfg.Sources.Local); err != nil {
		return Config{}, err
	}
	cfg.Sources.Collector = applyFeedDefaults(cfg.Sources.Collector)
	cfg.Sources.Local = applyFeedDefaults(cfg.Sources.Local)

	if cfg.FragmentTimeout <= 0 {
		cfg.FragmentTimeout = 60 * time.Second
	}
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = ":8086"
	}
	if cfg.UDP.Enable && cfg.UDP.Dest == "" {
		return Config{}, fmt.Errorf("udp.dest is required when udp.enable is true")
	}
	if cfg.NATS.Enable {
		if cfg.NATS.URL == "" {
			return Config{}, fmt.Errorf("nats.url is required when nats.enable is true")
		}
		if cfg.NATS.SubjectPrefix == "" {
			cfg.NATS.SubjectPrefix = "ais.reports"
		}
	}
	if cfg.Track.MaxVessels <= 0 {
		cfg.Track.MaxVessels = 5000
	}
	if cfg.Track.TTL <= 0 {
		cfg.Track.TTL = 10 * time.Minute
	}

	return cfg, nil
}

func validateFeed(name string, f FeedConfig) error {
	if !f.Enabled {
		return nil
	}
	if f.Host == "" {
		return fmt.Errorf("sources.%s.host is required when enabled", name)
	}
	if f.Port <= 0 || f.Port > 65535 {
		return fmt.Errorf("sources.%s.port is invalid: %d", name, f.Port)
	}
	if f.MaxReconnectAttempts < 0 {
		return fmt.Errorf("sources.%s.max_reconnect_attempts must be >= 0", name)
	}
	return nil
}

func applyFeedDefaults(f FeedConfig) FeedConfig {
	if f.ReconnectInterval <= 0 {
		f.ReconnectInterval = 2 * time.Second
	}
	return f
}
