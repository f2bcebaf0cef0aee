package observe

import (
	"bytes"
	"context"
	"testing"
)

func TestAuditor_RecordFields(t *testing.T) {
	var buf bytes.Buffer
	a := NewAuditor(NewLoggerWithWriter("debug", &buf))

	a.Record(context.Background(), AuditRecord{
		Event:       EventTokenInvalid,
		Severity:    SeverityHigh,
		TokenLength: 5,
		TokenFormat: "none",
		Reason:      "too_short",
		IP:          "203.0.113.1",
	})

	entry := decodeLines(t, &buf)[0]
	checks := map[string]any{
		"eventType":   "TRUST_TOKEN_INVALID",
		"severity":    "high",
		"tokenLength": float64(5),
		"tokenFormat": "none",
		"reason":      "too_short",
		"ip":          "203.0.113.1",
		"audit":       true,
		"level":       "warn",
	}
	for k, want := range checks {
		if entry[k] != want {
			t.Errorf("%s = %v, want %v", k, entry[k], want)
		}
	}
	if _, ok := entry["source"]; ok {
		t.Error("empty source should be omitted")
	}
}

func TestAuditor_RevocationFields(t *testing.T) {
	var buf bytes.Buffer
	a := NewAuditor(NewLoggerWithWriter("debug", &buf))

	a.Record(context.Background(), AuditRecord{
		Event:     EventTokenRevoked,
		Severity:  SeverityHigh,
		Partition: "3f2a9c",
		Alg:       "RS256",
		Kid:       "key-1",
	})

	entry := decodeLines(t, &buf)[0]
	checks := map[string]any{
		"eventType": "TRUST_TOKEN_REVOKED",
		"partition": "3f2a9c",
		"alg":       "RS256",
		"kid":       "key-1",
		"level":     "warn",
	}
	for k, want := range checks {
		if entry[k] != want {
			t.Errorf("%s = %v, want %v", k, entry[k], want)
		}
	}
}

func TestAuditor_SeverityLevels(t *testing.T) {
	tests := []struct {
		severity Severity
		level    string
	}{
		{SeverityHigh, "warn"},
		{SeverityMedium, "info"},
		{SeverityInfo, "debug"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		NewAuditor(NewLoggerWithWriter("debug", &buf)).Record(context.Background(), AuditRecord{
			Event:    EventTokenValid,
			Severity: tt.severity,
		})
		if got := decodeLines(t, &buf)[0]["level"]; got != tt.level {
			t.Errorf("severity %s logged at %v, want %s", tt.severity, got, tt.level)
		}
	}
}

func TestAuditor_NilLogger(t *testing.T) {
	NewAuditor(nil).Record(context.Background(), AuditRecord{Event: EventTokenMissing})
}
