// Package ir provides the canonical representation of chain scripts and
// run traces.
//
// This package contains type definitions, canonical JSON serialization, and
// content-addressed hashing only. All other internal packages import ir; ir
// imports nothing internal. This keeps it the foundational layer with no
// circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - counters and amounts are int64
//   - All JSON tags use snake_case
//   - Logical clocks (seq, turn) only, never wall-clock timestamps
//   - Hashing uses RFC 8785 canonical JSON with domain separation
package ir
