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
	"math/big"
)

// ByteOrder selects how an integer is laid out in a byte buffer.
type ByteOrder int

const (
	// BigEndian puts the most significant byte first.
	BigEndian ByteOrder = iota
	// LittleEndian puts the least significant byte first. This is the
	// layout used on the wire by the SRP exchange.
	LittleEndian
)

// ModExp returns base^exponent mod modulus. The result is 0 when modulus is 1.
// exponent must be non-negative and modulus positive.
func ModExp(base, exponent, modulus *big.Int) *big.Int {
	if modulus.Cmp(big.NewInt(1)) == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Exp(Mod(base, modulus), exponent, modulus)
}

// Mod returns n mod modulus in [0, modulus), also for negative n.
func Mod(n, modulus *big.Int) *big.Int {
	// big.Int.Mod is the Euclidean modulus, never negative for modulus > 0.
	return new(big.Int).Mod(n, modulus)
}

// ByteLength is the minimal number of bytes needed to store n. Zero takes one byte.
func ByteLength(n *big.Int) int {
	if n.Sign() == 0 {
		return 1
	}
	return (n.BitLen() + 7) / 8
}

// IntToBytes serializes n in the given byte order. When length is larger
// than the natural size the result is zero padded on the most significant
// side; otherwise the minimal encoding is returned.
func IntToBytes(n *big.Int, order ByteOrder, length int) []byte {
	raw := n.Bytes()
	if len(raw) == 0 {
		raw = []byte{0}
	}

	size := len(raw)
	if length > size {
		size = length
	}

	out := make([]byte, size)
	copy(out[size-len(raw):], raw)
	if order == LittleEndian {
		reverse(out)
	}
	return out
}

// BytesToInt is the inverse of IntToBytes. An empty or all-zero buffer
// decodes to 0.
func BytesToInt(buf []byte, order ByteOrder) *big.Int {
	if order == LittleEndian {
		reversed := make([]byte, len(buf))
		copy(reversed, buf)
		reverse(reversed)
		buf = reversed
	}
	return new(big.Int).SetBytes(buf)
}

func reverse(arr []byte) {
	for i, j := 0, len(arr)-1; i < j; i, j = i+1, j-1 {
		arr[i], arr[j] = arr[j], arr[i]
	}
}

func toInt(arr []byte) *big.Int {
	return BytesToInt(arr, LittleEndian)
}

func fromInt(byteLength int, num *big.Int) []byte {
	return IntToBytes(num, LittleEndian, byteLength)
}
