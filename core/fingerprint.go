// Copyright 2025 Poiesic Systems
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

package core

import (
	"encoding/base64"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

const (
	// FingerprintLength bounds the stored size of a fingerprint.
	FingerprintLength = 50

	fingerprintDelimiter = "|"
	fingerprintDigestLen = 64
)

// FingerprintOf derives a stable identity from a record's ID and semantic
// fields. Fields are concatenated in the fixed order
// id|title|description|problem_statement|method; missing fields
// contribute an empty string. The concatenation is digested with BLAKE2b and
// encoded as unpadded URL-safe base64 truncated to FingerprintLength.
//
// Not suitable for security purposes.
func FingerprintOf(r Record) Fingerprint {
	var sb strings.Builder
	sb.WriteString(r.ID)
	for _, slot := range FieldSlots {
		sb.WriteString(fingerprintDelimiter)
		sb.WriteString(r.Field(slot))
	}

	h, _ := blake2b.New(fingerprintDigestLen, nil)
	h.Write([]byte(sb.String()))
	encoded := base64.RawURLEncoding.EncodeToString(h.Sum(nil))
	if len(encoded) > FingerprintLength {
		encoded = encoded[:FingerprintLength]
	}
	return Fingerprint(encoded)
}

// Fingerprints computes the fingerprint of every record keyed by record ID.
func Fingerprints(records []Record) map[string]Fingerprint {
	out := make(map[string]Fingerprint, len(records))
	for _, r := range records {
		out[r.ID] = FingerprintOf(r)
	}
	return out
}
