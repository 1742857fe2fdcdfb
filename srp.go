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
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"io"
	"math/big"

	"github.com/cronokirby/safenum"
	"github.com/pkg/errors"
)

// RandReader is the source of the secret exponents. It is a variable so
// tests can replace it.
var RandReader = rand.Reader

const expandedHashSize = 4 * sha512.Size

// Proofs holds the client side result of an exchange, little endian.
// ClientEphemeral is A, ClientProof is M1 and ExpectedServerProof is M2.
type Proofs struct {
	ClientProof, ClientEphemeral, ExpectedServerProof, sharedSession []byte
}

// SharedSession returns the raw shared secret S, little endian.
func (p *Proofs) SharedSession() []byte {
	return p.sharedSession
}

// VerifyServerProof checks in constant time that the server proved knowledge
// of the same shared secret.
func (p *Proofs) VerifyServerProof(serverProof []byte) error {
	if len(p.ExpectedServerProof) == 0 || subtle.ConstantTimeCompare(p.ExpectedServerProof, serverProof) != 1 {
		return ErrInvalidServerProof
	}
	return nil
}

// Auth stores byte data for the calculation of SRP proofs. The modulus must
// come from a verified signed message.
type Auth struct {
	Modulus, ServerEphemeral, HashedPassword []byte
}

// NewAuth Creates new Auth from strings input. Salt and server ephemeral are in
// base64 format. Modulus is base64 with signature attached. The signature is
// verified against server key. The version controls password hash algorithm.
func NewAuth(version int, username string, password []byte, b64salt, signedModulus, serverEphemeral string) (auth *Auth, err error) {
	data := &Auth{}

	data.Modulus, err = VerifyAndGetModulus(signedModulus)
	if err != nil {
		return
	}

	var decodedSalt []byte
	if version >= 3 {
		decodedSalt, err = base64.StdEncoding.DecodeString(b64salt)
		if err != nil {
			return nil, errors.Wrap(err, "pm-srp: can not decode salt")
		}
	}
	data.HashedPassword, err = HashPassword(version, password, username, decodedSalt, data.Modulus)
	if err != nil {
		return
	}

	data.ServerEphemeral, err = base64.StdEncoding.DecodeString(serverEphemeral)
	if err != nil {
		return nil, errors.Wrap(err, "pm-srp: can not decode server ephemeral")
	}

	auth = data
	return
}

// NewAuthForVerifier Creates new Auth from a password, the signed modulus and
// a raw salt, to compute the verifier of a new password. Hash version is 4.
func NewAuthForVerifier(password []byte, signedModulus string, rawSalt []byte) (auth *Auth, err error) {
	data := &Auth{}

	data.Modulus, err = VerifyAndGetModulus(signedModulus)
	if err != nil {
		return
	}

	data.HashedPassword, err = hashPasswordVersion3(password, rawSalt, data.Modulus)
	if err != nil {
		return
	}

	auth = data
	return
}

func bytesToNat(arr []byte) *safenum.Nat {
	var reversed = make([]byte, len(arr))
	copy(reversed, arr)
	reverse(reversed)
	return new(safenum.Nat).SetBytes(reversed)
}

func intToNat(val uint64) *safenum.Nat {
	return new(safenum.Nat).SetUint64(val)
}

func bytesToModulus(arr []byte) *safenum.Modulus {
	var reversed = make([]byte, len(arr))
	copy(reversed, arr)
	reverse(reversed)
	return safenum.ModulusFromBytes(reversed)
}

func natToBytes(byteLength int, nat *safenum.Nat) []byte {
	return fromInt(byteLength, new(big.Int).SetBytes(nat.Bytes()))
}

func checkBitLength(bitLength int) (int, error) {
	if bitLength <= 0 || bitLength%8 != 0 {
		return 0, ErrInvalidBitLength
	}
	return bitLength / 8, nil
}

func computeMultiplier(generator, modulus *big.Int, byteLength int) (*big.Int, error) {
	modulusMinusOne := big.NewInt(0).Sub(modulus, big.NewInt(1))
	multiplier := toInt(expandHash(append(fromInt(byteLength, generator), fromInt(byteLength, modulus)...)))
	multiplier = multiplier.Mod(multiplier, modulus)

	if multiplier.Cmp(big.NewInt(1)) <= 0 || multiplier.Cmp(modulusMinusOne) >= 0 {
		return nil, ErrMultiplierOutOfBounds
	}

	return multiplier, nil
}

// CheckModulus checks that the little endian modulus has bitLength bits and
// is a safe prime.
func CheckModulus(modulusBytes []byte, bitLength int) error {
	modulus := toInt(modulusBytes)
	if modulus.BitLen() != bitLength {
		return ErrModulusSize
	}
	modulusMinusOne := big.NewInt(0).Sub(modulus, big.NewInt(1))

	// Check primality
	// Doing exponentiation here is faster than a full call to ProbablyPrime while
	// still perfectly accurate by Pocklington's theorem
	if big.NewInt(0).Exp(big.NewInt(2), modulusMinusOne, modulus).Cmp(big.NewInt(1)) != 0 {
		return ErrModulusNotPrime
	}

	// Check safe primality
	if !big.NewInt(0).Rsh(modulus, 1).ProbablyPrime(10) {
		return ErrModulusNotSafePrime
	}
	return nil
}

// GenerateProofs calculates the client SRP proofs for a modulus of bitLength bits.
func (s *Auth) GenerateProofs(bitLength int) (*Proofs, error) {
	byteLength, err := checkBitLength(bitLength)
	if err != nil {
		return nil, err
	}
	return generateProofs(byteLength, s.Modulus, s.HashedPassword, s.ServerEphemeral)
}

// generateProofs runs the client side of SRP-6a over little endian buffers.
// The modulus and the server ephemeral must both be byteLength long.
func generateProofs(byteLength int, modulusBytes, hashedPasswordBytes, serverEphemeralBytes []byte) (*Proofs, error) {
	if byteLength <= 0 {
		return nil, ErrInvalidBitLength
	}
	bitLength := byteLength * 8

	if len(modulusBytes) != byteLength {
		return nil, ErrModulusSize
	}
	modulusInt := toInt(modulusBytes)
	if modulusInt.BitLen() != bitLength {
		return nil, ErrModulusSize
	}
	if len(serverEphemeralBytes) != byteLength {
		return nil, ErrServerEphemeralSize
	}

	modulus := bytesToModulus(modulusBytes)
	modulusNat := bytesToNat(modulusBytes)
	generatorInt := big.NewInt(2)
	generatorNat := intToNat(2)
	hashedPassword := bytesToNat(hashedPasswordBytes)
	zeroNat := intToNat(0)

	modulusMinusOneInt := big.NewInt(0).Sub(modulusInt, big.NewInt(1))
	modulusMinusOneNat := intToNat(0).Sub(modulusNat, intToNat(1), uint(bitLength))

	multiplier, err := computeMultiplier(generatorInt, modulusInt, byteLength)
	if err != nil {
		return nil, err
	}
	multiplierNat := bytesToNat(fromInt(byteLength, multiplier))

	if generatorInt.Cmp(big.NewInt(1)) <= 0 || generatorInt.Cmp(modulusMinusOneInt) >= 0 {
		return nil, errors.New("pm-srp: SRP generator is out of bounds")
	}

	// B = 0 and B = N would both force a predictable shared secret.
	serverEphemeral := intToNat(0).Mod(bytesToNat(serverEphemeralBytes), modulus)
	if serverEphemeral.Cmp(zeroNat) == 0 {
		return nil, ErrServerEphemeralOutOfBounds
	}

	var clientSecret, clientEphemeral, scramblingParam *safenum.Nat
	lowerBoundNat := intToNat(uint64(bitLength * 2))
	randBytes := make([]byte, byteLength)
	for {
		for {
			if _, err := io.ReadFull(RandReader, randBytes); err != nil {
				return nil, errors.Wrapf(err, "pm-srp: couldn't get %d random bytes", byteLength)
			}

			clientSecret = bytesToNat(randBytes)

			// Prevent g^a from being smaller than the modulus
			// and a to be >= than N-1
			if clientSecret.Cmp(lowerBoundNat) > 0 &&
				clientSecret.Cmp(modulusMinusOneNat) < 0 {
				break
			}
		}

		clientEphemeral = intToNat(0).Exp(generatorNat, clientSecret, modulus)
		scramblingParam = bytesToNat(
			expandHash(
				append(
					natToBytes(byteLength, clientEphemeral),
					serverEphemeralBytes...,
				),
			),
		)
		if scramblingParam.Cmp(zeroNat) != 0 { // Very likely
			break
		}
	}

	substracted := intToNat(0).ModSub(
		serverEphemeral,
		intToNat(0).ModMul(
			intToNat(0).Exp(
				generatorNat,
				hashedPassword,
				modulus,
			),
			multiplierNat,
			modulus,
		),
		modulus,
	)

	// The exponent a + u*x is kept whole, it is not reduced modulo N-1.
	exponentCap := uint(8 * (expandedHashSize + len(hashedPasswordBytes) + byteLength))
	exponent := intToNat(0).Add(
		intToNat(0).Mul(
			scramblingParam,
			hashedPassword,
			exponentCap,
		),
		clientSecret,
		exponentCap,
	)

	sharedSession := intToNat(0).Exp(
		substracted,
		exponent,
		modulus,
	)

	clientEphemeralBytes := natToBytes(byteLength, clientEphemeral)
	sharedSessionBytes := natToBytes(byteLength, sharedSession)

	clientProof := expandHash(
		bytes.Join(
			[][]byte{
				clientEphemeralBytes,
				serverEphemeralBytes,
				sharedSessionBytes,
			},
			[]byte{},
		),
	)

	serverProof := expandHash(
		bytes.Join(
			[][]byte{
				clientEphemeralBytes,
				clientProof,
				sharedSessionBytes,
			},
			[]byte{},
		),
	)

	return &Proofs{
		ClientEphemeral:     clientEphemeralBytes,
		ClientProof:         clientProof,
		ExpectedServerProof: serverProof,
		sharedSession:       sharedSessionBytes,
	}, nil
}

// GenerateVerifier verifier for update pwds and create accounts
func (s *Auth) GenerateVerifier(bitLength int) ([]byte, error) {
	byteLength, err := checkBitLength(bitLength)
	if err != nil {
		return nil, err
	}
	if len(s.Modulus) != byteLength {
		return nil, ErrModulusSize
	}

	modulus := bytesToModulus(s.Modulus)
	generator := intToNat(2)
	hashedPassword := bytesToNat(s.HashedPassword)
	calModPow := intToNat(0).Exp(generator, hashedPassword, modulus)
	return natToBytes(byteLength, calModPow), nil
}

// RandomBits returns bits/8 random bytes.
func RandomBits(bits int) ([]byte, error) {
	return RandomBytes(bits / 8)
}

// RandomBytes returns count bytes read from RandReader.
func RandomBytes(count int) (raw []byte, err error) {
	raw = make([]byte, count)
	if _, err = io.ReadFull(RandReader, raw); err != nil {
		return nil, errors.Wrap(err, "pm-srp: couldn't get random bytes")
	}
	return
}
