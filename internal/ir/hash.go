package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainTree separates tree hashes from any other hash in the system.
// The version suffix enables future encoding migration.
const DomainTree = "exprjit/tree/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TreeHash returns the content address of a tree. Identical trees built
// independently hash identically; it keys stored programs.
func TreeHash(n Node) (string, error) {
	canonical, err := MarshalCanonical(n)
	if err != nil {
		return "", fmt.Errorf("TreeHash: %w", err)
	}
	return hashWithDomain(DomainTree, canonical), nil
}

// MustTreeHash is like TreeHash but panics on error.
// Use only in tests or when the tree is known to be encodable.
func MustTreeHash(n Node) string {
	h, err := TreeHash(n)
	if err != nil {
		panic(err)
	}
	return h
}
