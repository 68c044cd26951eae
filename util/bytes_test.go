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

package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUint64RoundTrip(t *testing.T) {
	tests := []uint64{0, 1, 255, 256, 1 << 32, 1<<64 - 1}

	for _, value := range tests {
		encoded := Uint64AsBytes(value)
		require.Len(t, encoded, 8)
		require.Equalf(t, value, BytesAsUint64(encoded), "Round trip failed for value %d", value)
	}
}

func TestUint64AsBytesLittleEndian(t *testing.T) {
	require.Equal(t, []byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, Uint64AsBytes(1))
	require.Equal(t, []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, Uint64AsBytes(256))
}

func TestUint32AsBytesLittleEndian(t *testing.T) {
	require.Equal(t, []byte{0x02, 0x01, 0x00, 0x00}, Uint32AsBytes(258))
}
