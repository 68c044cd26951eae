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

// Package hashing implements different hashers and their functionality.
package hashing

import (
	"crypto/sha256"
	"hash"

	"golang.org/x/crypto/sha3"
)

type Digest []byte

// Hasher is the interface implemented by all hashers. Do hashes the
// concatenation of its arguments. Len returns the digest size in bytes.
type Hasher interface {
	Do(...[]byte) Digest
	Len() uint16
}

type KeyHasher struct {
	underlying hash.Hash
	size       uint16
}

// NewKeccak256Hasher implements the Hasher interface and computes a 256 bit
// hash function using the legacy Keccak-256 hashing algorithm, the variant
// that predates the FIPS-202 padding change.
func NewKeccak256Hasher() Hasher {
	return &KeyHasher{underlying: sha3.NewLegacyKeccak256(), size: 32}
}

// NewSha256Hasher implements the Hasher interface and computes a 256 bit
// hash function using the SHA256 hashing algorithm.
func NewSha256Hasher() Hasher {
	return &KeyHasher{underlying: sha256.New(), size: 32}
}

// Do function hashes input data using the hashing function given by the KeyHasher.
func (s *KeyHasher) Do(data ...[]byte) Digest {
	s.underlying.Reset()
	for i := 0; i < len(data); i++ {
		_, _ = s.underlying.Write(data[i])
	}
	return s.underlying.Sum(nil)[:]
}

// Len function returns the size of the resulting hash.
func (s KeyHasher) Len() uint16 { return s.size }

// XorHasher implements the Hasher interface and computes a 1 byte hash
// function. Handy for testing hash tree implementations.
type XorHasher struct{}

func NewXorHasher() Hasher {
	return new(XorHasher)
}

// Do function hashes input data using the XOR hash function.
func (x XorHasher) Do(data ...[]byte) Digest {
	var result byte
	for _, elem := range data {
		var sum byte
		for _, b := range elem {
			sum = sum ^ b
		}
		result = result ^ sum
	}
	return []byte{result}
}

// Len function returns the size of the resulting hash.
func (x XorHasher) Len() uint16 { return uint16(1) }
