// Package audit provides structured audit logging for DLP evaluations.
package audit

import (
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mattgotteiner/purviewgate/internal/policy"
	"github.com/mattgotteiner/purviewgate/pkg/types"
)

var (
	bearerTokenPattern = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9\-._~+/]+=*`)
	keyValuePattern    = regexp.MustCompile(`(?i)\b(token|secret|password|authorization)\s*[:=]\s*([^\s,;]+)`)
)

// Evaluation captures one finalized content-processing outcome.
type Evaluation struct {
	CorrelationID  string
	ConversationID string
	SequenceNumber int
	Activity       types.Activity
	ExecutionMode  types.ExecutionMode
	PolicyMode     policy.Mode
	Outcome        policy.Outcome
	Action         string
	Duration       time.Duration
	ErrorDetail    string
}

// Logger emits structured audit entries.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates an audit logger.
func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Complete writes a single entry for one content-processing evaluation.
func (l *Logger) Complete(event Evaluation) {
	if l == nil {
		return
	}

	outcome := strings.TrimSpace(string(event.Outcome))
	if outcome == "" {
		outcome = "error"
	}

	duration := event.Duration
	if duration < 0 {
		duration = 0
	}

	entry := l.logger.Info().
		Str("event", "dlp.process_content.completed").
		Str("correlation_id", strings.TrimSpace(event.CorrelationID)).
		Str("conversation_id", strings.TrimSpace(event.ConversationID)).
		Int("sequence", event.SequenceNumber).
		Str("activity", string(event.Activity)).
		Str("execution_mode", string(event.ExecutionMode)).
		Str("policy_mode", string(event.PolicyMode)).
		Str("outcome", outcome).
		Dur("duration", duration)

	if action := strings.TrimSpace(event.Action); action != "" {
		entry = entry.Str("action", action)
	}
	if detail := strings.TrimSpace(event.ErrorDetail); detail != "" {
		entry = entry.Str("error_detail", Redact(detail))
	}

	entry.Msg("content processing completed")
}

// Redact masks bearer tokens and key=value secrets before emission.
func Redact(text string) string {
	redacted := bearerTokenPattern.ReplaceAllString(text, "Bearer [REDACTED]")
	redacted = keyValuePattern.ReplaceAllString(redacted, "$1=[REDACTED]")
	return redacted
}
