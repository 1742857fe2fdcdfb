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

import "github.com/pkg/errors"

var (
	// ErrUnverifiedServer is returned whenever the signed modulus can not be
	// verified. The reason is deliberately not exposed.
	ErrUnverifiedServer = errors.New("pm-srp: unable to verify server identity")

	// ErrMissingSalt salt is required by auth versions 3 and 4
	ErrMissingSalt = errors.New("pm-srp: missing salt")

	// ErrMissingUsername username is required by auth versions 0 to 2
	ErrMissingUsername = errors.New("pm-srp: missing username")

	// ErrUnsupportedVersion auth version is not in 0..4
	ErrUnsupportedVersion = errors.New("pm-srp: unsupported auth version")

	// ErrUsernameMismatch the server asserted another username than the local one
	ErrUsernameMismatch = errors.New("pm-srp: username does not match")

	ErrInvalidBitLength           = errors.New("pm-srp: bit length must be a positive multiple of 8")
	ErrModulusSize                = errors.New("pm-srp: SRP modulus has incorrect size")
	ErrServerEphemeralSize        = errors.New("pm-srp: SRP server ephemeral has incorrect size")
	ErrServerEphemeralOutOfBounds = errors.New("pm-srp: SRP server ephemeral is out of bounds")
	ErrClientEphemeralOutOfBounds = errors.New("pm-srp: SRP client ephemeral is out of bounds")
	ErrMultiplierOutOfBounds      = errors.New("pm-srp: SRP multiplier is out of bounds")
	ErrModulusNotPrime            = errors.New("pm-srp: SRP modulus is not prime")
	ErrModulusNotSafePrime        = errors.New("pm-srp: SRP modulus is not a safe prime")
	ErrInvalidServerProof         = errors.New("pm-srp: invalid server proof")
	ErrInvalidClientProof         = errors.New("pm-srp: invalid client proof")
	ErrChallengeNotGenerated      = errors.New("pm-srp: server challenge has not been generated")
	ErrMalformedAuthInfo          = errors.New("pm-srp: malformed auth info")
)

var securityRejections = []error{
	ErrUnverifiedServer,
	ErrUsernameMismatch,
	ErrServerEphemeralOutOfBounds,
	ErrClientEphemeralOutOfBounds,
	ErrMultiplierOutOfBounds,
	ErrModulusNotPrime,
	ErrModulusNotSafePrime,
	ErrInvalidServerProof,
	ErrInvalidClientProof,
}

// IsSecurityRejection reports whether err means the peer sent values that
// must not be trusted, as opposed to a local input mistake or an upstream
// failure. Such errors must never be retried with relaxed checks.
func IsSecurityRejection(err error) bool {
	for _, target := range securityRejections {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
