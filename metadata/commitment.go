// Copyright 2026 OpenHallmark Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metadata

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// CommitmentFunc produces a one-way digest over the ordered
// (active, proposed) pair. Injectable so tests can use deterministic
// commitments.
type CommitmentFunc func(active, proposed string) []byte

// Commitment is the default SHA3-256 commitment. Each value is length
// prefixed so ("ab","c") and ("a","bc") commit differently.
func Commitment(active, proposed string) []byte {
	h := sha3.New256()
	var length [8]byte
	for _, value := range []string{active, proposed} {
		binary.BigEndian.PutUint64(length[:], uint64(len(value)))
		h.Write(length[:])
		h.Write([]byte(value))
	}
	return h.Sum(nil)
}
