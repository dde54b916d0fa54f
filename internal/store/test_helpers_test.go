package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/relay/internal/ir"
)

// createTestStore creates a new on-disk store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a pending test run with minimal required fields.
func createTestRun(token, scriptName string) ir.Run {
	return ir.Run{
		Token:         token,
		ScriptName:    scriptName,
		ScriptHash:    "test-hash",
		Status:        ir.StatusPending,
		RunnerVersion: "0.1.0",
		IRVersion:     "1",
	}
}

// createTestEmission creates a test emission for a run.
func createTestEmission(token string, seq, turn int64, kind ir.EmissionKind, text string, value int64) ir.Emission {
	return ir.Emission{
		RunToken: token,
		Seq:      seq,
		Turn:     turn,
		Kind:     kind,
		Text:     text,
		Value:    value,
	}
}
