package observe

import "context"

// AuditEvent names a security-relevant trust token outcome.
type AuditEvent string

const (
	EventTokenMissing AuditEvent = "TRUST_TOKEN_MISSING"
	EventTokenInvalid AuditEvent = "TRUST_TOKEN_INVALID"
	EventTokenValid   AuditEvent = "TRUST_TOKEN_VALID"
	EventTokenRevoked AuditEvent = "TRUST_TOKEN_REVOKED"
)

// Severity grades an audit event.
type Severity string

const (
	SeverityInfo   Severity = "info"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// AuditRecord describes one audit event. It never carries the token.
type AuditRecord struct {
	Event       AuditEvent
	Severity    Severity
	TokenLength int
	TokenFormat string
	Reason      string
	Source      string
	IP          string
	Path        string
	// Partition is the cache partition key, never the token itself.
	Partition string
	// Alg and Kid come from a JWT token's header.
	Alg string
	Kid string
}

// Auditor writes audit records through a Logger.
type Auditor struct {
	logger Logger
}

// NewAuditor creates an Auditor. A nil logger discards records.
func NewAuditor(logger Logger) *Auditor {
	if logger == nil {
		logger = NopLogger()
	}
	return &Auditor{logger: logger.With(Field{Key: "audit", Value: true})}
}

// Record logs rec at a level matching its severity.
func (a *Auditor) Record(ctx context.Context, rec AuditRecord) {
	fields := []Field{
		{Key: "eventType", Value: string(rec.Event)},
		{Key: "severity", Value: string(rec.Severity)},
		{Key: "tokenLength", Value: rec.TokenLength},
		{Key: "tokenFormat", Value: rec.TokenFormat},
	}
	if rec.Reason != "" {
		fields = append(fields, Field{Key: "reason", Value: rec.Reason})
	}
	if rec.Source != "" {
		fields = append(fields, Field{Key: "source", Value: rec.Source})
	}
	if rec.IP != "" {
		fields = append(fields, Field{Key: "ip", Value: rec.IP})
	}
	if rec.Path != "" {
		fields = append(fields, Field{Key: "path", Value: rec.Path})
	}
	if rec.Partition != "" {
		fields = append(fields, Field{Key: "partition", Value: rec.Partition})
	}
	if rec.Alg != "" {
		fields = append(fields, Field{Key: "alg", Value: rec.Alg})
	}
	if rec.Kid != "" {
		fields = append(fields, Field{Key: "kid", Value: rec.Kid})
	}

	switch rec.Severity {
	case SeverityHigh:
		a.logger.Warn(ctx, "security audit event", fields...)
	case SeverityMedium:
		a.logger.Info(ctx, "security audit event", fields...)
	default:
		a.logger.Debug(ctx, "security audit event", fields...)
	}
}
