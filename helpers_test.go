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
	"math/big"
	"sync"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/clearsign"
	"github.com/stretchr/testify/require"
)

const testBitLength = 2048

// RFC 5054 2048-bit group, big endian.
const rfc5054Modulus = "AC6BDB41324A9A9BF166DE5E1389582FAF72B6651987EE07FC3192943DB56050" +
	"A37329CBB4A099ED8193E0757767A13DD52312AB4B03310DCD7F48A9DA04FD50" +
	"E8083969EDB767B0CF6095179A163AB3661A05FBD5FAAAE82918A9962F0B93B8" +
	"55F97993EC975EEAA80D740ADBF4FF747359D041D5C33EA71D281E446B14773B" +
	"CA97B43A23FB801676BD207A436C6481F1D2B9078717461A5B9D32E688F87748" +
	"544523B524B0D57D5EA77A2775D2ECFA032CFBDBF52FB3786160279004E57AE6" +
	"AF874E7303CE53299CCC041C7BC308D82A5698F3A8D0C38271AE35F8E9DBFBB6" +
	"94B5C803D89F7AE435DE236D525F54759B65E372FCD68EF20FA7111F9E4AFF73"

var (
	testKeyOnce    sync.Once
	testKeyEntity  *openpgp.Entity
	testKeyArmored string
	testKeyErr     error
)

// testSigningKey returns a throwaway signing key and its armored public part.
func testSigningKey(t *testing.T) (*openpgp.Entity, string) {
	t.Helper()

	testKeyOnce.Do(func() {
		testKeyEntity, testKeyErr = openpgp.NewEntity("srp test", "modulus", "modulus@example.com", nil)
		if testKeyErr != nil {
			return
		}

		var buf bytes.Buffer
		w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
		if err != nil {
			testKeyErr = err
			return
		}
		if err := testKeyEntity.Serialize(w); err != nil {
			testKeyErr = err
			return
		}
		if err := w.Close(); err != nil {
			testKeyErr = err
			return
		}
		testKeyArmored = buf.String()
	})

	require.NoError(t, testKeyErr)
	return testKeyEntity, testKeyArmored
}

func signCleartext(t *testing.T, entity *openpgp.Entity, text string) string {
	t.Helper()

	var buf bytes.Buffer
	w, err := clearsign.Encode(&buf, entity.PrivateKey, nil)
	require.NoError(t, err)
	_, err = w.Write([]byte(text))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.String()
}

// signModulus returns modulus signed by the test key, in the server format.
func signModulus(t *testing.T, modulus []byte) string {
	t.Helper()
	entity, _ := testSigningKey(t)
	return signCleartext(t, entity, base64.StdEncoding.EncodeToString(modulus))
}

// testModulus is a 2048 bits little endian modulus, not prime.
func testModulus() []byte {
	modulus := make([]byte, testBitLength/8)
	modulus[0] = 0x07
	modulus[len(modulus)-1] = 0xFF
	return modulus
}

func rfcModulus(t *testing.T) []byte {
	t.Helper()
	n, ok := new(big.Int).SetString(rfc5054Modulus, 16)
	require.True(t, ok)
	return fromInt(testBitLength/8, n)
}

func testServerEphemeral() []byte {
	ephemeral := make([]byte, testBitLength/8)
	ephemeral[0] = 0x03
	ephemeral[len(ephemeral)-1] = 0x01
	return ephemeral
}
