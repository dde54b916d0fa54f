package ir

// RunStatus is the terminal (or in-flight) state of a run.
type RunStatus string

const (
	// StatusPending marks a run whose chain has not finished.
	StatusPending RunStatus = "pending"
	// StatusOK marks a run whose chain completed every step.
	StatusOK RunStatus = "ok"
	// StatusError marks a run aborted by a step failure or quota.
	StatusError RunStatus = "error"
)

// EmissionKind distinguishes marker lines from counter value lines.
type EmissionKind string

const (
	// KindMarker is a begin or end line.
	KindMarker EmissionKind = "marker"
	// KindValue is a counter value line produced by a step.
	KindValue EmissionKind = "value"
)

// Run is the record of one script execution.
type Run struct {
	Token         string    `json:"token"`
	ScriptName    string    `json:"script_name"`
	ScriptHash    string    `json:"script_hash"` // Content-addressed (relay/script/v1)
	Status        RunStatus `json:"status"`
	FinalValue    int64     `json:"final_value"`
	Error         string    `json:"error,omitempty"`
	RunnerVersion string    `json:"runner_version"`
	IRVersion     string    `json:"ir_version"`
}

// Emission is one observed output line of a run.
//
// Seq is the 1-based, contiguous per-run sequence assigned by the runner.
// Turn is the loop turn on which the line was emitted. Both are logical
// clocks; neither is derived from wall time.
type Emission struct {
	RunToken string       `json:"run_token"`
	Seq      int64        `json:"seq"`
	Turn     int64        `json:"turn"`
	Kind     EmissionKind `json:"kind"`
	Text     string       `json:"text"`
	Value    int64        `json:"value,omitempty"` // value emissions only
}

// canonicalMap converts the emission to the plain map form consumed by
// MarshalCanonical.
//
// RunToken is intentionally EXCLUDED: an emission's canonical identity is
// "what was observed when", not which run observed it. This keeps
// TraceDigest stable across re-executions under fresh tokens, which is what
// replay verification compares.
func (e Emission) canonicalMap() map[string]any {
	m := map[string]any{
		"kind": string(e.Kind),
		"seq":  e.Seq,
		"text": e.Text,
		"turn": e.Turn,
	}
	if e.Kind == KindValue {
		m["value"] = e.Value
	}
	return m
}

// Lines extracts the emitted text lines in seq order.
// The caller must pass emissions already ordered by seq.
func Lines(emissions []Emission) []string {
	lines := make([]string, len(emissions))
	for i, e := range emissions {
		lines[i] = e.Text
	}
	return lines
}
