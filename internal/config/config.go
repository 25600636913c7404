// Package config validates the codec façade's configuration (spec §6,
// "set_config"): the crypto passphrase, the id codec selection, the default
// codec group, and the per-codec maximum message size. It is the
// codec-level counterpart to package validator, which checks individual
// schema descriptions; this package checks the façade's own options before
// any message is loaded.
package config

import (
	"fmt"

	"github.com/benthic-labs/dccl/internal/dccllog"
)

// Config holds the options enumerated in spec §6.
type Config struct {
	// CryptoPassphrase, if non-empty, is hashed (SHA-256) into the body
	// encryption key used for any message descriptor whose CryptoKeyID is
	// set. Messages without a CryptoKeyID are unaffected either way.
	CryptoPassphrase []byte

	// IDCodecName selects the registered ID codec variant ("default" or
	// "legacy-ccl"); see package idcodec.
	IDCodecName string

	// DefaultCodecGroup names the codec group a message descriptor uses
	// when it does not name one explicitly.
	DefaultCodecGroup string

	// MaxSizeBytes is the default per-message maximum encoded size, used
	// by the validator when a MessageDescriptor does not override it.
	MaxSizeBytes int

	// Logger receives diagnostic messages; defaults to dccllog.Default().
	Logger dccllog.Sink
}

const (
	defaultIDCodecName    = "default"
	defaultCodecGroupName = "v3"
	defaultMaxSizeBytes   = 32
)

// WithDefaults returns a copy of c with zero-valued fields replaced by the
// package defaults, so that Validate sees a filled-in Config.
func (c Config) WithDefaults() Config {
	if c.IDCodecName == "" {
		c.IDCodecName = defaultIDCodecName
	}
	if c.DefaultCodecGroup == "" {
		c.DefaultCodecGroup = defaultCodecGroupName
	}
	if c.MaxSizeBytes == 0 {
		c.MaxSizeBytes = defaultMaxSizeBytes
	}
	if c.Logger == nil {
		c.Logger = dccllog.Default()
	}
	return c
}

// Validate checks a Config for internal consistency. It does not inspect
// any message descriptor; that is validator.Validate's job.
func (c Config) Validate() error {
	if c.IDCodecName == "" {
		return fmt.Errorf("config: id codec name must not be empty")
	}

	if c.DefaultCodecGroup == "" {
		return fmt.Errorf("config: default codec group must not be empty")
	}

	if c.MaxSizeBytes <= 0 {
		return fmt.Errorf("config: max size bytes must be positive, got %d", c.MaxSizeBytes)
	}

	return nil
}
