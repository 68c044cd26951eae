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

package merkle

import (
	"bytes"

	"github.com/bbva/treelog/crypto/hashing"
)

// Side tells where a sibling hash sits relative to the node being
// authenticated.
type Side string

const (
	Left  Side = "left"
	Right Side = "right"
)

// AuditNode is one step of an audit path: the sibling digest and the
// side it occupies.
type AuditNode struct {
	Hash hashing.Digest
	Side Side
}

// MembershipProof authenticates the leaf at LeafIndex against a root.
// The audit path is ordered bottom-up, leaf level first.
type MembershipProof struct {
	LeafIndex uint64
	AuditPath []AuditNode

	hasher hashing.Hasher
}

func NewMembershipProof(leafIndex uint64, auditPath []AuditNode, hasher hashing.Hasher) *MembershipProof {
	return &MembershipProof{
		LeafIndex: leafIndex,
		AuditPath: auditPath,
		hasher:    hasher,
	}
}

// Verify folds the audit path over the leaf digest and compares the
// result with the expected root.
func (p *MembershipProof) Verify(leaf, expectedRoot hashing.Digest) bool {
	current := leaf
	for _, node := range p.AuditPath {
		switch node.Side {
		case Right:
			current = p.hasher.Do(current, node.Hash)
		case Left:
			current = p.hasher.Do(node.Hash, current)
		default:
			return false
		}
	}
	return bytes.Equal(current, expectedRoot)
}
