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
	"bytes"
	"encoding/base64"
	"strings"
	"sync"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/clearsign"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Amored pubkey for modulus verification
const modulusPubkey = "-----BEGIN PGP PUBLIC KEY BLOCK-----\r\n\r\nxjMEXAHLgxYJKwYBBAHaRw8BAQdAFurWXXwjTemqjD7CXjXVyKf0of7n9Ctm\r\nL8v9enkzggHNEnByb3RvbkBzcnAubW9kdWx1c8J3BBAWCgApBQJcAcuDBgsJ\r\nBwgDAgkQNQWFxOlRjyYEFQgKAgMWAgECGQECGwMCHgEAAPGRAP9sauJsW12U\r\nMnTQUZpsbJb53d0Wv55mZIIiJL2XulpWPQD/V6NglBd96lZKBmInSXX/kXat\r\nSv+y0io+LR8i2+jV+AbOOARcAcuDEgorBgEEAZdVAQUBAQdAeJHUz1c9+KfE\r\nkSIgcBRE3WuXC4oj5a2/U3oASExGDW4DAQgHwmEEGBYIABMFAlwBy4MJEDUF\r\nhcTpUY8mAhsMAAD/XQD8DxNI6E78meodQI+wLsrKLeHn32iLvUqJbVDhfWSU\r\nWO4BAMcm1u02t4VKw++ttECPt+HUgPUq5pqQWe5Q2cW4TMsE\r\n=Y4Mw\r\n-----END PGP PUBLIC KEY BLOCK-----"

// GetModulusKey returns the pinned armored key used to verify moduli.
func GetModulusKey() string {
	return modulusPubkey
}

// VerificationStatus is the outcome of a cleartext signature check.
type VerificationStatus int

const (
	StatusNotSigned VerificationStatus = iota
	StatusValid
	StatusInvalid
)

func (s VerificationStatus) String() string {
	switch s {
	case StatusNotSigned:
		return "not signed"
	case StatusValid:
		return "valid"
	case StatusInvalid:
		return "invalid"
	}
	return "unknown"
}

// Keyring imports the armored verification key and exports it back. Export
// is only used to probe whether an imported key is still usable.
type Keyring interface {
	Import(armored string) (openpgp.EntityList, error)
	Export(keys openpgp.EntityList) ([]byte, error)
}

type armoredKeyring struct{}

// NewKeyring returns the Keyring backed by go-crypto.
func NewKeyring() Keyring {
	return armoredKeyring{}
}

func (armoredKeyring) Import(armored string) (openpgp.EntityList, error) {
	keys, err := openpgp.ReadArmoredKeyRing(strings.NewReader(armored))
	if err != nil {
		return nil, errors.Wrap(err, "pm-srp: can not read modulus pubkey")
	}
	return keys, nil
}

func (armoredKeyring) Export(keys openpgp.EntityList) ([]byte, error) {
	if len(keys) == 0 {
		return nil, errors.New("pm-srp: empty modulus keyring")
	}

	var buf bytes.Buffer
	for _, entity := range keys {
		if err := entity.Serialize(&buf); err != nil {
			return nil, errors.Wrap(err, "pm-srp: can not export modulus pubkey")
		}
	}
	return buf.Bytes(), nil
}

// ModulusVerifier checks that a modulus was signed by the pinned key. The
// imported key is cached and re-imported when it stops passing the export probe.
type ModulusVerifier struct {
	armoredKey string
	keyring    Keyring
	log        zerolog.Logger

	lock sync.RWMutex
	keys openpgp.EntityList
}

// NewModulusVerifier creates a verifier pinned to armoredKey. A nil keyring
// selects NewKeyring().
func NewModulusVerifier(armoredKey string, keyring Keyring) *ModulusVerifier {
	if keyring == nil {
		keyring = NewKeyring()
	}
	return &ModulusVerifier{
		armoredKey: armoredKey,
		keyring:    keyring,
		log:        zerolog.Nop(),
	}
}

// SetLogger replaces the verifier's logger. It must be called before the
// verifier is shared.
func (v *ModulusVerifier) SetLogger(log zerolog.Logger) {
	v.log = log
}

func (v *ModulusVerifier) usable(keys openpgp.EntityList) bool {
	if keys == nil {
		return false
	}
	_, err := v.keyring.Export(keys)
	return err == nil
}

// verificationKeys returns the cached key, importing it again if the probe fails.
func (v *ModulusVerifier) verificationKeys() (openpgp.EntityList, error) {
	v.lock.RLock()
	keys := v.keys
	v.lock.RUnlock()
	if v.usable(keys) {
		return keys, nil
	}

	v.lock.Lock()
	defer v.lock.Unlock()

	// Another caller may have re-imported while we waited.
	if v.usable(v.keys) {
		return v.keys, nil
	}
	if v.keys != nil {
		v.log.Warn().Msg("Modulus verification key failed export probe, importing it again")
	}
	return v.importLocked()
}

func (v *ModulusVerifier) importLocked() (openpgp.EntityList, error) {
	keys, err := v.keyring.Import(v.armoredKey)
	if err != nil {
		v.keys = nil
		return nil, err
	}
	v.keys = keys
	return keys, nil
}

// Invalidate drops the cached key and imports it again from the pinned source.
func (v *ModulusVerifier) Invalidate() error {
	v.lock.Lock()
	defer v.lock.Unlock()
	v.keys = nil
	_, err := v.importLocked()
	return err
}

// verifyCleartext reads the clear text from a signed message and checks its
// signature against keys. There must be no data appended after the message.
func verifyCleartext(signedMessage string, keys openpgp.KeyRing) (string, VerificationStatus) {
	block, rest := clearsign.Decode([]byte(signedMessage))
	if block == nil {
		return "", StatusNotSigned
	}
	if len(bytes.TrimSpace(rest)) != 0 {
		return "", StatusInvalid
	}

	_, err := openpgp.CheckDetachedSignature(keys, bytes.NewReader(block.Bytes), block.ArmoredSignature.Body, nil)
	if err != nil {
		return "", StatusInvalid
	}
	return string(block.Bytes), StatusValid
}

// Verify returns the plaintext of signedMessage if, and only if, it carries
// a valid signature of the pinned key. Every failure is reported as
// ErrUnverifiedServer.
func (v *ModulusVerifier) Verify(signedMessage string) (string, error) {
	keys, err := v.verificationKeys()
	if err != nil {
		v.log.Error().Err(err).Msg("Failed to load modulus verification key")
		return "", ErrUnverifiedServer
	}

	plaintext, status := verifyCleartext(signedMessage, keys)
	if status != StatusValid {
		v.log.Debug().Stringer("status", status).Msg("Rejected signed modulus")
		return "", ErrUnverifiedServer
	}
	return plaintext, nil
}

// VerifyAndGetModulus verifies signedModulus and decodes its base64 payload.
func (v *ModulusVerifier) VerifyAndGetModulus(signedModulus string) ([]byte, error) {
	plaintext, err := v.Verify(signedModulus)
	if err != nil {
		return nil, err
	}

	modulus, err := base64.StdEncoding.DecodeString(strings.TrimSpace(plaintext))
	if err != nil {
		return nil, errors.Wrap(err, "pm-srp: can not decode modulus")
	}
	return modulus, nil
}

var defaultModulusVerifier = NewModulusVerifier(modulusPubkey, nil)

// VerifyAndGetModulus verifies signedModulus against the pinned key and
// returns the raw modulus bytes.
func VerifyAndGetModulus(signedModulus string) ([]byte, error) {
	return defaultModulusVerifier.VerifyAndGetModulus(signedModulus)
}
