package ast

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Hasher computes canonical content hashes for functions.
// Uses length-prefixed encoding to avoid delimiter ambiguity.
// Format: ${len}:${value}${len}:${value}... where NULL → 0:
// Algorithm: SHA-256, lowercase hex output
type Hasher struct{}

// NewHasher creates a new hasher instance
func NewHasher() *Hasher {
	return &Hasher{}
}

// HashFunction computes the canonical hash for a function.
// Fields (in order): name, parameter types (normalized), return type
// (normalized), modifiers, body structural hash, body text.
// Location is excluded so a function keeps its hash when it moves.
func (h *Hasher) HashFunction(f *Function) string {
	parts := []string{
		f.Signature.Name,
	}
	for _, p := range f.Signature.Parameters {
		parts = append(parts, p.Type.Normalized())
	}
	if f.Signature.ReturnType != nil {
		parts = append(parts, f.Signature.ReturnType.Normalized())
	} else {
		parts = append(parts, "")
	}
	parts = append(parts, strings.Join(f.Signature.Modifiers, ","))
	parts = append(parts, f.Body.StructuralHash())
	parts = append(parts, f.Body.FlattenText())
	return h.hashFields(parts)
}

// HashPair computes a cache key for an ordered pair of trees. Text is
// included so trees that differ only in content get distinct keys.
func (h *Hasher) HashPair(source, target *Node) string {
	return h.hashFields([]string{source.ContentHash(), target.ContentHash()})
}

// hashFields computes SHA-256 of length-prefixed fields
func (h *Hasher) hashFields(fields []string) string {
	var builder strings.Builder

	for _, field := range fields {
		// Length prefix: "len:value"
		// Empty/null → "0:"
		builder.WriteString(strconv.Itoa(len(field)))
		builder.WriteByte(':')
		builder.WriteString(field)
	}

	hash := sha256.Sum256([]byte(builder.String()))
	return hex.EncodeToString(hash[:])
}
