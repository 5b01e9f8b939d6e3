package usecase

import (
	"testing"
	"time"

	"mailpilot-backend/internal/response/domain"

	"github.com/stretchr/testify/assert"
)

func gatePolicy() *domain.AutomationPolicy {
	return &domain.AutomationPolicy{
		UserID:              "user-1",
		AutoSendEnabled:     true,
		ConfidenceThreshold: 70,
		DailyLimit:          50,
		MinDwellMinutes:     5,
	}
}

func gateRecord(confidence float64, age time.Duration) *domain.ResponseRecord {
	return &domain.ResponseRecord{
		ID:         "rec-1",
		UserID:     "user-1",
		Confidence: confidence,
		Status:     domain.StatusPendingAutoSend,
		CreatedAt:  time.Now().Add(-age),
	}
}

func TestGateSendsWhenAllGuardsPass(t *testing.T) {
	gate := NewDispatchGate(nil)
	decision, reason := gate.Evaluate(gateRecord(0.9, time.Hour), testMessage(), gatePolicy(), 0, time.Now())
	assert.Equal(t, DecisionSend, decision)
	assert.Empty(t, reason)
}

func TestGateHoldsWhenAutoSendDisabled(t *testing.T) {
	gate := NewDispatchGate(nil)
	policy := gatePolicy()
	policy.AutoSendEnabled = false

	decision, _ := gate.Evaluate(gateRecord(0.9, time.Hour), testMessage(), policy, 0, time.Now())
	assert.Equal(t, DecisionHold, decision)
}

func TestGateHoldsOnMissingPolicy(t *testing.T) {
	gate := NewDispatchGate(nil)
	decision, _ := gate.Evaluate(gateRecord(0.9, time.Hour), testMessage(), nil, 0, time.Now())
	assert.Equal(t, DecisionHold, decision)
}

func TestGateHoldsBelowConfidenceThreshold(t *testing.T) {
	gate := NewDispatchGate(nil)
	decision, _ := gate.Evaluate(gateRecord(0.69, time.Hour), testMessage(), gatePolicy(), 0, time.Now())
	assert.Equal(t, DecisionHold, decision)
}

func TestGateWaitsAtDailyLimit(t *testing.T) {
	gate := NewDispatchGate(nil)
	policy := gatePolicy()
	policy.DailyLimit = 10

	decision, _ := gate.Evaluate(gateRecord(0.9, time.Hour), testMessage(), policy, 10, time.Now())
	assert.Equal(t, DecisionWait, decision)
}

func TestGateWaitsDuringDwellWindow(t *testing.T) {
	gate := NewDispatchGate(nil)
	decision, _ := gate.Evaluate(gateRecord(0.9, time.Minute), testMessage(), gatePolicy(), 0, time.Now())
	assert.Equal(t, DecisionWait, decision)
}

func TestGateWaitsOutsideBusinessHours(t *testing.T) {
	gate := NewDispatchGate(nil)
	policy := gatePolicy()
	policy.WorkingHoursStart = "09:00"
	policy.WorkingHoursEnd = "17:00"

	now := time.Date(2026, 8, 20, 22, 30, 0, 0, time.UTC)
	decision, _ := gate.Evaluate(gateRecord(0.9, time.Hour), testMessage(), policy, 0, now)
	assert.Equal(t, DecisionWait, decision)
}

func TestGateImportanceOverrideBeatsEverything(t *testing.T) {
	gate := NewDispatchGate(nil)
	policy := gatePolicy()
	policy.RequireConfirmationForImportant = true

	msg := testMessage()
	msg.Body = "This is urgent, please reply today."

	// Even a perfect-confidence record goes to review.
	decision, reason := gate.Evaluate(gateRecord(1.0, time.Hour), msg, policy, 0, time.Now())
	assert.Equal(t, DecisionManualReview, decision)
	assert.Equal(t, ReviewReasonImportant, reason)
}

func TestGateImportanceIgnoredWithoutConfirmationFlag(t *testing.T) {
	gate := NewDispatchGate(nil)
	policy := gatePolicy()
	policy.RequireConfirmationForImportant = false

	msg := testMessage()
	msg.Body = "This is urgent, please reply today."

	decision, _ := gate.Evaluate(gateRecord(0.9, time.Hour), msg, policy, 0, time.Now())
	assert.Equal(t, DecisionSend, decision)
}

func TestKeywordImportanceClassifier(t *testing.T) {
	classify := NewKeywordImportanceClassifier([]string{"@bigclient.com"})

	assert.True(t, classify(&domain.IncomingMessage{Subject: "Contract review", Body: "see attached"}))
	assert.True(t, classify(&domain.IncomingMessage{Sender: "Pat <pat@bigclient.com>", Body: "quick note"}))
	assert.False(t, classify(&domain.IncomingMessage{Subject: "Lunch", Body: "pizza on friday?"}))
}
