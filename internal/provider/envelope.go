package provider

// Envelope is the uniform result shape consumed by every caller (chat
// handlers, scheduled jobs), independent of which provider produced it.
//
// Invariant: Error is non-empty exactly when the call failed; in that case
// Report is empty and ProcessedEntries is zero.
type Envelope struct {
	Report           string         `json:"report"`
	Error            string         `json:"error,omitempty"`
	ProcessedEntries int            `json:"processed_entries"`
	Provider         string         `json:"provider"`
	ToolFailures     []ToolFailure  `json:"tool_failures,omitempty"`
	Meta             map[string]any `json:"meta,omitempty"`

	// Timings holds wall-clock measurements in seconds, keyed by phase
	// (currently "total_seconds").
	Timings map[string]float64 `json:"timings,omitempty"`
}

// Failed reports whether the envelope carries an error.
func (e *Envelope) Failed() bool {
	return e.Error != ""
}

// ToLegacy serializes the envelope into the loose mapping shape the chat
// display formatters consume. This is the only place the legacy shape is
// produced; it never flows back into core logic.
func (e *Envelope) ToLegacy() map[string]any {
	payload := map[string]any{"processed_entries": e.ProcessedEntries}
	if e.Error != "" {
		payload["error"] = e.Error
		return payload
	}
	payload["report"] = e.Report
	if len(e.ToolFailures) > 0 {
		failures := make([]map[string]any, 0, len(e.ToolFailures))
		for _, f := range e.ToolFailures {
			entry := map[string]any{"capability": f.Capability}
			if f.Error != nil {
				entry["error"] = map[string]any{
					"code":      f.Error.Code,
					"message":   f.Error.Message,
					"retryable": f.Error.Retryable,
					"details":   f.Error.Details,
				}
			}
			failures = append(failures, entry)
		}
		payload["tool_failures"] = failures
	}
	return payload
}
