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
	"crypto/subtle"
	"io"
	"math/big"

	"github.com/cronokirby/safenum"
	"github.com/pkg/errors"
)

// Server is the server side of the SRP exchange for one login attempt.
// It is not safe for concurrent use.
type Server struct {
	byteLength int

	modulus         *safenum.Modulus
	modulusMinusOne *safenum.Nat
	multiplier      *safenum.Nat
	verifier        *safenum.Nat

	serverSecret         *safenum.Nat
	serverEphemeralBytes []byte
	sharedSession        []byte
}

// NewServer creates a server for a little endian modulus and the verifier
// produced by Auth.GenerateVerifier.
func NewServer(modulusBytes, verifier []byte, bitLength int) (*Server, error) {
	byteLength, err := checkBitLength(bitLength)
	if err != nil {
		return nil, err
	}
	if len(modulusBytes) != byteLength {
		return nil, ErrModulusSize
	}
	modulusInt := toInt(modulusBytes)
	if modulusInt.BitLen() != bitLength {
		return nil, ErrModulusSize
	}

	multiplier, err := computeMultiplier(big.NewInt(2), modulusInt, byteLength)
	if err != nil {
		return nil, err
	}

	return &Server{
		byteLength:      byteLength,
		modulus:         bytesToModulus(modulusBytes),
		modulusMinusOne: intToNat(0).Sub(bytesToNat(modulusBytes), intToNat(1), uint(bitLength)),
		multiplier:      bytesToNat(fromInt(byteLength, multiplier)),
		verifier:        bytesToNat(verifier),
	}, nil
}

// GenerateChallenge picks the server secret and returns the server
// ephemeral B = k*v + g^b mod N.
func (s *Server) GenerateChallenge() ([]byte, error) {
	lowerBound := intToNat(uint64(s.byteLength * 16))
	randBytes := make([]byte, s.byteLength)

	for {
		if _, err := io.ReadFull(RandReader, randBytes); err != nil {
			return nil, errors.Wrapf(err, "pm-srp: couldn't get %d random bytes", s.byteLength)
		}

		secret := bytesToNat(randBytes)
		if secret.Cmp(lowerBound) <= 0 || secret.Cmp(s.modulusMinusOne) >= 0 {
			continue
		}

		ephemeral := intToNat(0).ModAdd(
			intToNat(0).ModMul(s.multiplier, intToNat(0).Mod(s.verifier, s.modulus), s.modulus),
			intToNat(0).Exp(intToNat(2), secret, s.modulus),
			s.modulus,
		)
		if ephemeral.Cmp(intToNat(0)) == 0 {
			continue
		}

		s.serverSecret = secret
		s.serverEphemeralBytes = natToBytes(s.byteLength, ephemeral)
		s.sharedSession = nil
		return s.serverEphemeralBytes, nil
	}
}

// VerifyProofs checks the client proof and returns the server proof.
func (s *Server) VerifyProofs(clientEphemeralBytes, clientProof []byte) ([]byte, error) {
	if s.serverSecret == nil {
		return nil, ErrChallengeNotGenerated
	}
	if len(clientEphemeralBytes) != s.byteLength {
		return nil, ErrClientEphemeralOutOfBounds
	}

	clientEphemeral := intToNat(0).Mod(bytesToNat(clientEphemeralBytes), s.modulus)
	if clientEphemeral.Cmp(intToNat(0)) == 0 {
		return nil, ErrClientEphemeralOutOfBounds
	}

	scramblingParam := bytesToNat(expandHash(append(append([]byte{}, clientEphemeralBytes...), s.serverEphemeralBytes...)))

	// S = (A * v^u)^b mod N
	sharedSession := intToNat(0).Exp(
		intToNat(0).ModMul(
			clientEphemeral,
			intToNat(0).Exp(s.verifier, scramblingParam, s.modulus),
			s.modulus,
		),
		s.serverSecret,
		s.modulus,
	)
	sharedSessionBytes := natToBytes(s.byteLength, sharedSession)

	expectedClientProof := expandHash(bytes.Join([][]byte{clientEphemeralBytes, s.serverEphemeralBytes, sharedSessionBytes}, []byte{}))
	if subtle.ConstantTimeCompare(expectedClientProof, clientProof) != 1 {
		return nil, ErrInvalidClientProof
	}

	s.sharedSession = sharedSessionBytes
	return expandHash(bytes.Join([][]byte{clientEphemeralBytes, clientProof, sharedSessionBytes}, []byte{})), nil
}

// IsCompleted reports whether a client proof was accepted.
func (s *Server) IsCompleted() bool {
	return s.sharedSession != nil
}

// SharedSession returns the shared secret once the client proof was accepted.
func (s *Server) SharedSession() ([]byte, error) {
	if !s.IsCompleted() {
		return nil, errors.New("pm-srp: SRP exchange is not completed")
	}
	return s.sharedSession, nil
}
