package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewTraceShape(t *testing.T) {
	tr := NewTrace()
	if len(tr.TraceID) != 32 {
		t.Errorf("trace ID should be 32 hex chars, got %d (%s)", len(tr.TraceID), tr.TraceID)
	}
	if len(tr.SpanID) != 16 {
		t.Errorf("span ID should be 16 hex chars, got %d (%s)", len(tr.SpanID), tr.SpanID)
	}
	if tr.ParentSpanID != "" {
		t.Errorf("fresh trace must have no parent, got %s", tr.ParentSpanID)
	}
	for _, c := range tr.TraceID {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			t.Fatalf("trace ID contains non-hex char %q", c)
		}
	}
}

func TestNewTraceUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tr := NewTrace()
		if seen[tr.TraceID] {
			t.Fatal("duplicate trace ID minted")
		}
		seen[tr.TraceID] = true
	}
}

func TestChildInheritsTraceAndParentsSpan(t *testing.T) {
	root := NewTrace()
	child := root.Child()
	if child.TraceID != root.TraceID {
		t.Error("child must inherit the trace ID")
	}
	if child.SpanID == root.SpanID {
		t.Error("child must mint a new span ID")
	}
	if child.ParentSpanID != root.SpanID {
		t.Errorf("child parent span = %s, want %s", child.ParentSpanID, root.SpanID)
	}

	grandchild := child.Child()
	if grandchild.TraceID != root.TraceID || grandchild.ParentSpanID != child.SpanID {
		t.Error("grandchild lineage broken")
	}
}

func TestFetchJobJSONSchema(t *testing.T) {
	job := FetchJob{
		Zip:         "78729",
		ScheduledAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Trace:       NewTrace(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		t.Fatal(err)
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"zip_code", "scheduled_at", "_trace"} {
		if _, ok := m[key]; !ok {
			t.Errorf("FetchJob JSON missing key %q", key)
		}
	}

	var back FetchJob
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if back.Trace.TraceID != job.Trace.TraceID {
		t.Error("trace context lost in round trip")
	}
}

func TestValidateMessageRejectsBadZip(t *testing.T) {
	job := FetchJob{Zip: "7872", ScheduledAt: time.Now(), Trace: NewTrace()}
	if err := ValidateMessage(job); err == nil {
		t.Error("4-digit zip must fail validation")
	}
	job.Zip = "78729"
	if err := ValidateMessage(job); err != nil {
		t.Errorf("valid job rejected: %v", err)
	}
}

func TestValidateMessageRejectsOutOfRangeCoords(t *testing.T) {
	ev := WeatherReadyEvent{Zip: "78729", Lat: 91, Lon: 0, FetchedAt: time.Now(), Trace: NewTrace()}
	if err := ValidateMessage(ev); err == nil {
		t.Error("lat 91 must fail validation")
	}
}

func TestIsValidZip(t *testing.T) {
	valid := []string{"00000", "78729", "99999"}
	invalid := []string{"", "1234", "123456", "7872a", "78 29", "-1234"}
	for _, z := range valid {
		if !IsValidZip(z) {
			t.Errorf("IsValidZip(%q) = false, want true", z)
		}
	}
	for _, z := range invalid {
		if IsValidZip(z) {
			t.Errorf("IsValidZip(%q) = true, want false", z)
		}
	}
}
