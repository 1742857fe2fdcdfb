//  The MIT License
//
//  Copyright (c) 2019 Proton Technologies AG
//
//  Permission is hereby granted, free of charge, to any person obtaining a copy
//  of this software and associated documentation files (the "Software"), to deal
//  in the Software without restriction, including without limitation the rights
//  to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
//  copies of the Software, and to permit persons to whom the Software is
//  furnished to do so, subject to the following conditions:
//
//  The above copyright notice and this permission notice shall be included in
//  all copies or substantial portions of the Software.
//
//  THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
//  IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
//  FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
//  AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
//  LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
//  OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
//  THE SOFTWARE.

package srp

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// DefaultBitLength is the size of the moduli handed out by the server.
const DefaultBitLength = 2048

// Config holds the tunables of a Handshaker.
type Config struct {
	// BitLength is the expected size of the modulus.
	BitLength int `yaml:"bit_length"`
	// CheckModulusPrimality additionally requires the modulus to be a safe prime.
	CheckModulusPrimality bool `yaml:"check_modulus_primality"`
	// ModulusKey overrides the pinned armored key that signs moduli.
	ModulusKey string `yaml:"modulus_key,omitempty"`
	LogLevel   string `yaml:"log_level"`
}

// DefaultConfig returns the configuration matching the production server.
func DefaultConfig() *Config {
	return &Config{
		BitLength: DefaultBitLength,
		LogLevel:  zerolog.InfoLevel.String(),
	}
}

// LoadConfig reads a YAML configuration. Missing keys keep their default value.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	return cfg, nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.BitLength <= 0 || c.BitLength%8 != 0 {
		return errors.Errorf("bit_length must be a positive multiple of 8, got %d", c.BitLength)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(err, "invalid log_level %q", c.LogLevel)
	}
	return nil
}

func (c *Config) modulusKey() string {
	if c.ModulusKey != "" {
		return c.ModulusKey
	}
	return modulusPubkey
}

// NewLogger builds a logger writing to w at the given level.
func NewLogger(level string, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), errors.Wrapf(err, "invalid log level %q", level)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("component", "srp").Logger(), nil
}
