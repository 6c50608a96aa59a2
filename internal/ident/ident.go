// Package ident issues the opaque identifiers used by every ledger entity.
package ident

import (
	"strings"

	"github.com/google/uuid"
)

// Kind selects the prefix of a generated identifier.
type Kind string

// Identifier kinds, one per entity type.
const (
	KindProvider Kind = "prv"
	KindModel    Kind = "mdl"
	KindMapping  Kind = "map"
	KindUsage    Kind = "usg"
	KindBudget   Kind = "bgt"
	KindAudit    Kind = "aud"
)

// New returns a globally unique identifier for the given kind. The random
// part is a crypto/rand backed UUIDv4, so identifiers are collision-free
// across the process lifetime without coordination.
func New(kind Kind) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return string(kind) + "_" + raw
}
