package api

import (
	"crypto/tls"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// TLSConfig holds TLS certificate paths loaded from environment variables.
type TLSConfig struct {
	CertFile string `env:"ADVENTURE_TLS_CERT"`
	KeyFile  string `env:"ADVENTURE_TLS_KEY"`
}

// TLSFromEnv reads TLSConfig from the environment.
func TLSFromEnv() (TLSConfig, error) {
	var cfg TLSConfig
	if err := env.Parse(&cfg); err != nil {
		return TLSConfig{}, fmt.Errorf("parse tls env: %w", err)
	}
	return cfg, nil
}

// Enabled returns true if both cert and key are configured.
func (c TLSConfig) Enabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

// Load builds a tls.Config from the cert and key files.
// It returns nil, nil when TLS is not configured.
func (c TLSConfig) Load() (*tls.Config, error) {
	if !c.Enabled() {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load tls certificate: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
