package usecase

import (
	"strings"
	"time"

	"mailpilot-backend/internal/response/domain"
)

// Decision is the outcome of one admission-gate evaluation.
type Decision int

const (
	// DecisionHold keeps the record a draft: auto-send is off or the
	// confidence is below the user's threshold. Only a policy change or
	// a manual approve can move it.
	DecisionHold Decision = iota
	// DecisionWait means the record is eligible but a transient guard
	// (quota, business hours, dwell) blocks it until a later sweep.
	DecisionWait
	// DecisionManualReview routes the record to the user with a reason.
	DecisionManualReview
	// DecisionSend admits the record to the transport call.
	DecisionSend
)

// ReviewReasonImportant marks records held back by the importance
// override.
const ReviewReasonImportant = "important_email"

// ImportanceClassifier judges whether a message needs human eyes before
// any auto-reply. Pluggable so deployments can swap the heuristic.
type ImportanceClassifier func(msg *domain.IncomingMessage) bool

var importanceKeywords = []string{
	"urgent", "important", "critical", "asap", "emergency",
	"contract", "legal", "invoice", "payment", "deadline",
}

// NewKeywordImportanceClassifier builds the default classifier: a
// keyword scan over subject and body plus a sender-domain allowlist.
func NewKeywordImportanceClassifier(importantDomains []string) ImportanceClassifier {
	return func(msg *domain.IncomingMessage) bool {
		text := strings.ToLower(msg.Subject + " " + msg.Body)
		for _, kw := range importanceKeywords {
			if strings.Contains(text, kw) {
				return true
			}
		}
		sender := extractEmailAddress(msg.Sender)
		for _, d := range importantDomains {
			if d != "" && strings.HasSuffix(sender, strings.ToLower(d)) {
				return true
			}
		}
		return false
	}
}

// DispatchGate evaluates the admission guard for one record. It is a
// pure function of its inputs; the quota count is re-checked
// transactionally at claim time.
type DispatchGate struct {
	isImportant ImportanceClassifier
}

func NewDispatchGate(isImportant ImportanceClassifier) *DispatchGate {
	if isImportant == nil {
		isImportant = NewKeywordImportanceClassifier(nil)
	}
	return &DispatchGate{isImportant: isImportant}
}

// Evaluate returns the gate decision and, for manual review, the reason.
// The importance override beats every other guard: an important message
// goes to review regardless of confidence or quota headroom.
func (g *DispatchGate) Evaluate(
	record *domain.ResponseRecord,
	msg *domain.IncomingMessage,
	policy *domain.AutomationPolicy,
	sentToday int64,
	now time.Time,
) (Decision, string) {
	if policy == nil || !policy.AutoSendEnabled {
		return DecisionHold, ""
	}

	if policy.RequireConfirmationForImportant && g.isImportant(msg) {
		return DecisionManualReview, ReviewReasonImportant
	}

	if record.Confidence < float64(policy.ConfidenceThreshold)/100.0 {
		return DecisionHold, ""
	}

	if sentToday >= int64(policy.DailyLimit) {
		return DecisionWait, ""
	}

	if !policy.WithinBusinessHours(now) {
		return DecisionWait, ""
	}

	if now.Sub(record.CreatedAt) < time.Duration(policy.MinDwellMinutes)*time.Minute {
		return DecisionWait, ""
	}

	return DecisionSend, ""
}
