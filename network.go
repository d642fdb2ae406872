package main

import (
	"fmt"
	"os"
	"time"

	"github.com/btcsuite/btcd/wire"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// configFile is read from the working directory when it exists
const configFile = "txradar.yaml"

type NetworkConfig struct {
	Name             string          `yaml:"name"`
	ID               wire.BitcoinNet `yaml:"id"`
	Port             uint16          `yaml:"port"`
	NetVer           uint32          `yaml:"network_version"`
	SeedHost         string          `yaml:"seed_host"`
	SeedPort         uint16          `yaml:"seed_port"`
	MaxAttempts      int             `yaml:"max_attempts"`
	DNSResolver      string          `yaml:"dns_resolver"`
	DialTimeout      time.Duration   `yaml:"dial_timeout"`
	HandshakeTimeout time.Duration   `yaml:"handshake_timeout"`
	StatusInterval   time.Duration   `yaml:"status_interval"`
	UserAgent        string          `yaml:"user_agent"`
	LogLevel         string          `yaml:"log_level"`
}

func defaultConfig() NetworkConfig {
	return NetworkConfig{
		Name:             "bitcoin",
		ID:               wire.MainNet,
		Port:             8333,
		NetVer:           wire.ProtocolVersion,
		SeedHost:         "localhost",
		SeedPort:         8333,
		MaxAttempts:      100,
		DialTimeout:      time.Second * 10,
		HandshakeTimeout: time.Second * 30,
		StatusInterval:   time.Minute,
		UserAgent:        "/txradar:0.1.0/",
		LogLevel:         "info",
	}
}

// loadConfig returns the defaults overlaid with fName. A missing file is not
// an error.
func loadConfig(fName string) (*NetworkConfig, error) {
	cfg := defaultConfig()

	f, err := os.Open(fName)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("error opening config file: %v", err)
	}

	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err = decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	if err = cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *NetworkConfig) validate() error {
	if c.Port == 0 {
		return fmt.Errorf("invalid port supplied: %v", c.Port)
	}

	if c.SeedPort == 0 {
		return fmt.Errorf("invalid seed port supplied: %v", c.SeedPort)
	}

	if c.SeedHost == "" {
		return fmt.Errorf("no seed host supplied")
	}

	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be positive, got %d", c.MaxAttempts)
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %v", c.LogLevel, err)
	}

	return nil
}

// logger returns the entry every component of this network logs through
func (c *NetworkConfig) logger() *log.Entry {
	return log.WithField("network", c.Name)
}
