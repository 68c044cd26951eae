/*
   Copyright 2018-2019 Banco Bilbao Vizcaya Argentaria, S.A.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package codec implements the canonical text encoding for digests:
// lowercase, unprefixed, fixed-width hexadecimal.
package codec

import (
	"encoding/hex"
	"errors"

	"github.com/bbva/treelog/crypto/hashing"
)

// ErrInvalidHex is returned when a string is not a canonical hexadecimal
// encoding of a digest: wrong length, uppercase letters or non-hex bytes.
var ErrInvalidHex = errors.New("codec: invalid hex digest")

// EncodeDigest returns the canonical lowercase hex encoding of a digest.
func EncodeDigest(d hashing.Digest) string {
	return hex.EncodeToString(d)
}

// DecodeDigest parses a canonical hex string into a digest of width bytes.
// Uppercase letters are rejected, so every digest has exactly one accepted
// encoding.
func DecodeDigest(s string, width int) (hashing.Digest, error) {
	if len(s) != 2*width {
		return nil, ErrInvalidHex
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return nil, ErrInvalidHex
		}
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidHex
	}
	return hashing.Digest(raw), nil
}
