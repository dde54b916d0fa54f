package ir

// Version constants for the IR schema and runner.
const (
	// IRVersion is the script/trace schema version.
	IRVersion = "1"

	// RunnerVersion is the relay runner version.
	RunnerVersion = "0.1.0"
)
