package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainScript = "relay/script/v1"
	DomainTrace  = "relay/trace/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00}) // Null separator - CRITICAL for security
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ScriptHash computes the content-addressed hash of a script.
// The hash is stable across restarts and replays given the same script.
// Returns an error if the script cannot be canonically marshaled.
func ScriptHash(s Script) (string, error) {
	canonical, err := s.CanonicalJSON()
	if err != nil {
		return "", fmt.Errorf("ScriptHash: %w", err)
	}
	return hashWithDomain(DomainScript, canonical), nil
}

// TraceDigest computes the content-addressed digest of an ordered emission
// sequence. Emissions must already be in seq order.
//
// The digest excludes run tokens (see Emission.canonicalMap), so a replay
// of the same script under a fresh token produces the same digest if and
// only if the observable trace is identical. Replay verification compares
// exactly this.
func TraceDigest(emissions []Emission) (string, error) {
	list := make([]any, len(emissions))
	for i, e := range emissions {
		list[i] = e.canonicalMap()
	}

	canonical, err := MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("TraceDigest: %w", err)
	}
	return hashWithDomain(DomainTrace, canonical), nil
}

// MustScriptHash is like ScriptHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustScriptHash(s Script) string {
	hash, err := ScriptHash(s)
	if err != nil {
		panic(err)
	}
	return hash
}

// MustTraceDigest is like TraceDigest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustTraceDigest(emissions []Emission) string {
	digest, err := TraceDigest(emissions)
	if err != nil {
		panic(err)
	}
	return digest
}
