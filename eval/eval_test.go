package eval

import (
	"encoding/json"
	"testing"
)

// Diagnostics stay in-memory until a consumer serializes them outward, so
// the JSON shape is the contract worth pinning: lower-case severity and no
// span fields when the engine could not attribute a location.
func TestDiagnosticSerialization(t *testing.T) {
	diags := []Diagnostic{
		{
			Message:  "unresolved symbol frob",
			Severity: SeverityError,
			Start:    &Position{Line: 2, Column: 5},
			End:      &Position{Line: 2, Column: 9},
		},
		{Message: "unused binding", Severity: SeverityWarning},
	}

	data, err := json.Marshal(diags)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got []map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got[0]["severity"] != "error" {
		t.Errorf("severity = %v, want %q", got[0]["severity"], "error")
	}
	start, ok := got[0]["start"].(map[string]any)
	if !ok || start["line"] != float64(2) || start["column"] != float64(5) {
		t.Errorf("start = %v, want line 2 col 5", got[0]["start"])
	}
	if _, present := got[1]["start"]; present {
		t.Error("a diagnostic without a location must omit its span")
	}
}
