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
	"crypto/md5" //nolint:gosec
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/jameskeane/bcrypt"
	"github.com/pkg/errors"
)

const (
	bcryptAlphabet = "./ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	bcryptPrefix   = "$2a$10$"
	saltSuffix     = "proton"
)

var bcryptEncoding = base64.NewEncoding(bcryptAlphabet).WithPadding(base64.NoPadding)

// ExpandHash extends the byte data for SRP flow. The result is the
// concatenation of sha512(data || i) for i in 0..3, 256 bytes in total.
func ExpandHash(data []byte) []byte {
	return expandHash(data)
}

func expandHash(data []byte) []byte {
	input := make([]byte, len(data)+1)
	copy(input, data)

	parts := make([][]byte, 4)
	for i := range parts {
		input[len(data)] = byte(i)
		sum := sha512.Sum512(input)
		parts[i] = sum[:]
	}
	return bytes.Join(parts, []byte{})
}

// PasswordHasher is one of HashV0 to HashV4. Each variant carries the values
// its auth version hashes the password with.
type PasswordHasher interface {
	// Version returns the auth version implemented by the hasher.
	Version() int
	// Hash returns the 256 bytes hashed password bound to modulus.
	Hash(password, modulus []byte) ([]byte, error)

	isPasswordHasher()
}

// HashV4 is the current password hash, bcrypt with a server salt.
type HashV4 struct{ Salt []byte }

// HashV3 is identical to HashV4.
type HashV3 struct{ Salt []byte }

// HashV2 is HashV1 with a cleaned username.
type HashV2 struct{ Username string }

// HashV1 uses an md5 of the username as bcrypt salt.
type HashV1 struct{ Username string }

// HashV0 prehashes the password with the username before HashV1.
type HashV0 struct{ Username string }

func (HashV4) Version() int { return 4 }
func (HashV3) Version() int { return 3 }
func (HashV2) Version() int { return 2 }
func (HashV1) Version() int { return 1 }
func (HashV0) Version() int { return 0 }

func (HashV4) isPasswordHasher() {}
func (HashV3) isPasswordHasher() {}
func (HashV2) isPasswordHasher() {}
func (HashV1) isPasswordHasher() {}
func (HashV0) isPasswordHasher() {}

func (h HashV4) Hash(password, modulus []byte) ([]byte, error) {
	return hashPasswordVersion3(password, h.Salt, modulus)
}

func (h HashV3) Hash(password, modulus []byte) ([]byte, error) {
	return hashPasswordVersion3(password, h.Salt, modulus)
}

func (h HashV2) Hash(password, modulus []byte) ([]byte, error) {
	return hashPasswordVersion2(password, h.Username, modulus)
}

func (h HashV1) Hash(password, modulus []byte) ([]byte, error) {
	return hashPasswordVersion1(password, h.Username, modulus)
}

func (h HashV0) Hash(password, modulus []byte) ([]byte, error) {
	return hashPasswordVersion0(password, h.Username, modulus)
}

// NewPasswordHasher selects the hasher for an auth version. Versions 3 and 4
// need a salt, versions 0 to 2 a username.
func NewPasswordHasher(version int, username string, salt []byte) (PasswordHasher, error) {
	switch version {
	case 4, 3:
		if len(salt) == 0 {
			return nil, ErrMissingSalt
		}
		if version == 4 {
			return HashV4{Salt: salt}, nil
		}
		return HashV3{Salt: salt}, nil
	case 2, 1, 0:
		if username == "" {
			return nil, ErrMissingUsername
		}
		switch version {
		case 2:
			return HashV2{Username: username}, nil
		case 1:
			return HashV1{Username: username}, nil
		}
		return HashV0{Username: username}, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedVersion, "version %d", version)
	}
}

// HashPassword returns the hash of password argument. Based on version number
// following arguments are used in addition to password:
// * 0, 1, 2: userName and modulus
// * 3, 4: salt and modulus
func HashPassword(authVersion int, password []byte, userName string, salt, modulus []byte) ([]byte, error) {
	hasher, err := NewPasswordHasher(authVersion, userName, salt)
	if err != nil {
		return nil, err
	}
	return hasher.Hash(password, modulus)
}

// MailboxPassword derives the key passphrase from the password and a 16 bytes salt.
func MailboxPassword(password, salt []byte) ([]byte, error) {
	if len(salt) == 0 {
		return nil, ErrMissingSalt
	}
	return bcryptHash(password, bcryptPrefix+bcryptEncoding.EncodeToString(salt))
}

// bcryptHash hashes with a $2a$ salt and reports the result with the $2y$
// prefix the server expects. Both prefixes run the same algorithm.
func bcryptHash(password []byte, salt string) ([]byte, error) {
	crypted, err := bcrypt.HashBytes(password, []byte(salt))
	if err != nil {
		return nil, errors.Wrap(err, "pm-srp: bcrypt hashing failed")
	}
	return bytes.Replace(crypted, []byte("$2a$"), []byte("$2y$"), 1), nil
}

func hashPasswordVersion3(password, salt, modulus []byte) ([]byte, error) {
	if len(salt) == 0 {
		return nil, ErrMissingSalt
	}

	saltWithSuffix := make([]byte, 0, len(salt)+len(saltSuffix))
	saltWithSuffix = append(saltWithSuffix, salt...)
	saltWithSuffix = append(saltWithSuffix, saltSuffix...)

	crypted, err := bcryptHash(password, bcryptPrefix+bcryptEncoding.EncodeToString(saltWithSuffix))
	if err != nil {
		return nil, err
	}
	return expandHash(append(crypted, modulus...)), nil
}

func hashPasswordVersion2(password []byte, userName string, modulus []byte) ([]byte, error) {
	return hashPasswordVersion1(password, cleanUserName(userName), modulus)
}

func hashPasswordVersion1(password []byte, userName string, modulus []byte) ([]byte, error) {
	if userName == "" {
		return nil, ErrMissingUsername
	}

	prehashed := md5.Sum([]byte(strings.ToLower(userName))) //nolint:gosec
	crypted, err := bcryptHash(password, bcryptPrefix+hex.EncodeToString(prehashed[:]))
	if err != nil {
		return nil, err
	}
	return expandHash(append(crypted, modulus...)), nil
}

func hashPasswordVersion0(password []byte, userName string, modulus []byte) ([]byte, error) {
	if userName == "" {
		return nil, ErrMissingUsername
	}

	lowered := []byte(strings.ToLower(userName))
	input := make([]byte, 0, len(lowered)+len(password))
	input = append(input, lowered...)
	input = append(input, password...)

	prehashed := sha512.Sum512(input)
	return hashPasswordVersion1([]byte(base64.StdEncoding.EncodeToString(prehashed[:])), userName, modulus)
}

// cleanUserName lowercases and strips the separators ignored by version 2.
func cleanUserName(userName string) string {
	userName = strings.ReplaceAll(userName, "-", "")
	userName = strings.ReplaceAll(userName, ".", "")
	userName = strings.ReplaceAll(userName, "_", "")
	return strings.ToLower(userName)
}
