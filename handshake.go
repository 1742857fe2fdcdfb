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
	"encoding/base64"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// AuthInfo is what the server sends before a login: the hash version, the
// signed modulus, its ephemeral and the salt, all base64 encoded.
type AuthInfo struct {
	Version         int
	Modulus         string
	ServerEphemeral string
	Salt            string
	// Username is the name the server knows the account by, if any.
	Username string
	// SRPSession identifies the login attempt on the server side.
	SRPSession string
}

// ParseAuthInfo decodes an auth info response body.
func ParseAuthInfo(data []byte) (*AuthInfo, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.Wrap(ErrMalformedAuthInfo, "invalid JSON")
	}

	fields := gjson.GetManyBytes(data, "Version", "Modulus", "ServerEphemeral", "Salt", "Username", "SRPSession")
	for i, name := range []string{"Version", "Modulus", "ServerEphemeral"} {
		if !fields[i].Exists() {
			return nil, errors.Wrapf(ErrMalformedAuthInfo, "missing %s", name)
		}
	}
	if fields[0].Type != gjson.Number {
		return nil, errors.Wrap(ErrMalformedAuthInfo, "Version is not a number")
	}

	return &AuthInfo{
		Version:         int(fields[0].Int()),
		Modulus:         fields[1].String(),
		ServerEphemeral: fields[2].String(),
		Salt:            fields[3].String(),
		Username:        fields[4].String(),
		SRPSession:      fields[5].String(),
	}, nil
}

// Credentials are the local login values. They are never logged.
type Credentials struct {
	Username string
	Password []byte
}

// HandshakeResult carries the values sent back to the server, base64
// encoded, and the raw shared secret used to derive the session key.
type HandshakeResult struct {
	ClientEphemeral     string
	ClientProof         string
	ExpectedServerProof string
	SharedSession       []byte
}

// VerifyServerProof checks the base64 server proof against the expected one.
func (r *HandshakeResult) VerifyServerProof(serverProof string) error {
	expected, err := base64.StdEncoding.DecodeString(r.ExpectedServerProof)
	if err != nil {
		return errors.Wrap(err, "pm-srp: can not decode expected server proof")
	}
	received, err := base64.StdEncoding.DecodeString(serverProof)
	if err != nil {
		return ErrInvalidServerProof
	}
	return (&Proofs{ExpectedServerProof: expected}).VerifyServerProof(received)
}

// Handshaker computes the client side of a login. It is safe for concurrent
// use; the only shared state is the verifier's key cache.
type Handshaker struct {
	verifier       *ModulusVerifier
	bitLength      int
	checkPrimality bool
	log            zerolog.Logger
}

// Option customizes a Handshaker.
type Option func(*Handshaker)

// WithLogger sets the logger used for handshake events.
func WithLogger(log zerolog.Logger) Option {
	return func(h *Handshaker) {
		h.log = log
	}
}

// WithModulusVerifier replaces the verifier built from the configuration.
func WithModulusVerifier(verifier *ModulusVerifier) Option {
	return func(h *Handshaker) {
		h.verifier = verifier
	}
}

// NewHandshaker creates a Handshaker. A nil cfg selects DefaultConfig().
func NewHandshaker(cfg *Config, opts ...Option) (*Handshaker, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	h := &Handshaker{
		bitLength:      cfg.BitLength,
		checkPrimality: cfg.CheckModulusPrimality,
		log:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.verifier == nil {
		h.verifier = NewModulusVerifier(cfg.modulusKey(), nil)
		h.verifier.SetLogger(h.log)
	}
	return h, nil
}

// ComputeHandshake verifies the modulus, hashes the password and computes
// the SRP proofs for one login attempt.
func (h *Handshaker) ComputeHandshake(info *AuthInfo, creds *Credentials) (*HandshakeResult, error) {
	log := h.log.With().Int("auth_version", info.Version).Logger()

	result, err := h.computeHandshake(info, creds, log)
	if err != nil {
		log.Debug().Err(err).Bool("security_rejection", IsSecurityRejection(err)).Msg("SRP handshake failed")
		return nil, err
	}
	log.Debug().Msg("Computed SRP handshake")
	return result, nil
}

func (h *Handshaker) computeHandshake(info *AuthInfo, creds *Credentials, log zerolog.Logger) (*HandshakeResult, error) {
	modulus, err := h.verifier.VerifyAndGetModulus(info.Modulus)
	if err != nil {
		return nil, err
	}
	log.Trace().Int("modulus_size", len(modulus)).Msg("Verified modulus signature")

	if h.checkPrimality {
		if err := CheckModulus(modulus, h.bitLength); err != nil {
			return nil, err
		}
	}

	if info.Version == 2 {
		match, err := CheckUsername(info.Version, creds.Username, info.Username)
		if err != nil {
			return nil, err
		}
		if !match {
			return nil, ErrUsernameMismatch
		}
	}

	username := creds.Username
	if info.Username != "" {
		username = info.Username
	}

	var salt []byte
	if info.Version >= 3 && info.Salt != "" {
		salt, err = base64.StdEncoding.DecodeString(info.Salt)
		if err != nil {
			return nil, errors.Wrap(err, "pm-srp: can not decode salt")
		}
	}

	hasher, err := NewPasswordHasher(info.Version, username, salt)
	if err != nil {
		return nil, err
	}
	hashedPassword, err := hasher.Hash(creds.Password, modulus)
	if err != nil {
		return nil, err
	}

	serverEphemeral, err := base64.StdEncoding.DecodeString(info.ServerEphemeral)
	if err != nil {
		return nil, errors.Wrap(err, "pm-srp: can not decode server ephemeral")
	}

	proofs, err := generateProofs(h.bitLength/8, modulus, hashedPassword, serverEphemeral)
	if err != nil {
		return nil, err
	}

	return &HandshakeResult{
		ClientEphemeral:     base64.StdEncoding.EncodeToString(proofs.ClientEphemeral),
		ClientProof:         base64.StdEncoding.EncodeToString(proofs.ClientProof),
		ExpectedServerProof: base64.StdEncoding.EncodeToString(proofs.ExpectedServerProof),
		SharedSession:       proofs.SharedSession(),
	}, nil
}

var (
	defaultHandshaker     *Handshaker
	defaultHandshakerOnce sync.Once
)

// ComputeHandshake runs a handshake with the default configuration and the
// pinned modulus key.
func ComputeHandshake(info *AuthInfo, creds *Credentials) (*HandshakeResult, error) {
	defaultHandshakerOnce.Do(func() {
		defaultHandshaker = &Handshaker{
			verifier:  defaultModulusVerifier,
			bitLength: DefaultBitLength,
			log:       zerolog.Nop(),
		}
	})
	return defaultHandshaker.ComputeHandshake(info, creds)
}
