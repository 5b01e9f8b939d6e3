package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"mailpilot-backend/internal/response/domain"
	"mailpilot-backend/internal/response/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrRecordNotFound is returned by record lookups and user actions when
// no record exists (or the caller does not own it).
var ErrRecordNotFound = errors.New("response record not found")

// ErrInvalidTransition is returned when a user action loses the race
// against the sweep or targets a terminal record.
var ErrInvalidTransition = errors.New("record is not in an actionable state")

// Transport sends a reply on the user's behalf. Errors are terminal:
// the pipeline never retries a transport call on its own.
type Transport interface {
	Send(ctx context.Context, userID, to, subject, body, inReplyTo string) (string, error)
}

// Notifier pushes status changes to the owning user's devices.
type Notifier interface {
	Notify(ctx context.Context, userID, title, body string, data map[string]string) error
}

// ResponseUsecase is the pipeline surface consumed by the HTTP layer
// and the orchestrator.
type ResponseUsecase interface {
	// Submit stores an inbound message and runs the full generation
	// pipeline for it. Resubmitting the same message ID returns the
	// existing record.
	Submit(ctx context.Context, msg *domain.IncomingMessage) (*domain.ResponseRecord, error)
	// ProcessMessage runs generation and the initial gate evaluation
	// for an already-persisted message.
	ProcessMessage(ctx context.Context, msg *domain.IncomingMessage) (*domain.ResponseRecord, error)
	GetRecord(userID, recordID string) (*domain.ResponseRecord, error)
	GetStatus(userID, recordID string) (domain.ResponseStatus, error)
	// Approve attempts to send a pending or review-held record now.
	// The daily quota still applies; dwell and hours do not, since the
	// user consented explicitly.
	Approve(ctx context.Context, userID, recordID string) (*domain.ResponseRecord, error)
	// Reject is a hard cancellation of any not-yet-sent record.
	Reject(ctx context.Context, userID, recordID string) error
	GetDailySummary(userID string, date time.Time) (*repository.DailySummary, error)

	// SweepUser re-evaluates the user's draft and pending records and
	// dispatches the ones that pass the gate.
	SweepUser(ctx context.Context, userID string) error
	// SendDailySummary emails the user's digest for the given day when
	// the policy configures a summary address.
	SendDailySummary(ctx context.Context, policy *domain.AutomationPolicy, date time.Time) error
}

type responseUsecase struct {
	records   repository.ResponseRecordRepository
	messages  repository.MessageRepository
	policies  repository.PolicyRepository
	rules     repository.RuleRepository
	profiles  repository.StyleProfileRepository
	retriever *ContextRetriever
	generator *Generator
	adapter   *StyleAdapter
	gate      *DispatchGate
	transport Transport
	notifier  Notifier
	index     SemanticIndex
}

// NewResponseUsecase wires the pipeline stages together.
func NewResponseUsecase(
	records repository.ResponseRecordRepository,
	messages repository.MessageRepository,
	policies repository.PolicyRepository,
	rules repository.RuleRepository,
	profiles repository.StyleProfileRepository,
	retriever *ContextRetriever,
	generator *Generator,
	adapter *StyleAdapter,
	gate *DispatchGate,
	transport Transport,
	notifier Notifier,
	index SemanticIndex,
) ResponseUsecase {
	return &responseUsecase{
		records:   records,
		messages:  messages,
		policies:  policies,
		rules:     rules,
		profiles:  profiles,
		retriever: retriever,
		generator: generator,
		adapter:   adapter,
		gate:      gate,
		transport: transport,
		notifier:  notifier,
		index:     index,
	}
}

func (u *responseUsecase) Submit(ctx context.Context, msg *domain.IncomingMessage) (*domain.ResponseRecord, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now()
	}
	if err := u.messages.Save(msg); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}
	return u.ProcessMessage(ctx, msg)
}

func (u *responseUsecase) ProcessMessage(ctx context.Context, msg *domain.IncomingMessage) (*domain.ResponseRecord, error) {
	// Idempotency: at most one record per message, ever.
	existing, err := u.records.GetByMessageID(msg.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	record, err := u.generate(ctx, msg)
	if err != nil {
		return nil, err
	}

	if err := u.records.Create(record); err != nil {
		// A concurrent worker may have created the record between the
		// lookup and the insert; the unique index decides the winner.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return u.records.GetByMessageID(msg.ID)
		}
		return nil, fmt.Errorf("failed to persist response record: %w", err)
	}

	if err := u.evaluateNew(ctx, record, msg); err != nil {
		log.Printf("[Pipeline] Initial gate evaluation failed for record %s: %v", record.ID, err)
	}
	return record, nil
}

// generate runs retrieval, strategy selection, generation and style
// adaptation and returns an unsaved draft record.
func (u *responseUsecase) generate(ctx context.Context, msg *domain.IncomingMessage) (*domain.ResponseRecord, error) {
	retrieved := u.retriever.Retrieve(ctx, msg)

	allRules, err := u.rules.FindActiveByUser(msg.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load response rules: %w", err)
	}
	matched := MatchRules(allRules, msg)

	profile, err := u.profiles.GetByUserID(msg.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load style profile: %w", err)
	}

	strategy := SelectStrategy("", matched, profile)
	candidate := u.generator.Generate(ctx, msg, strategy, matched, profile, retrieved)
	u.adapter.Adapt(candidate, profile, msg)

	sources, _ := json.Marshal(candidate.ContextSources)
	return &domain.ResponseRecord{
		ID:                uuid.New().String(),
		OriginalMessageID: msg.ID,
		UserID:            msg.UserID,
		Text:              candidate.Text,
		Strategy:          candidate.Strategy,
		Confidence:        candidate.Confidence,
		Relevance:         candidate.Relevance,
		StyleMatch:        candidate.StyleMatch,
		ModelUsed:         candidate.ModelUsed,
		TokensUsed:        candidate.TokensUsed,
		LatencyMs:         candidate.LatencyMs,
		ContextSources:    string(sources),
		Status:            domain.StatusDraft,
		CreatedAt:         time.Now(),
	}, nil
}

// evaluateNew runs the first gate pass on a fresh draft. Sending itself
// is left to the sweep so every record gets its dwell window.
func (u *responseUsecase) evaluateNew(ctx context.Context, record *domain.ResponseRecord, msg *domain.IncomingMessage) error {
	policy, err := u.loadPolicy(record.UserID)
	if err != nil {
		return err
	}

	now := time.Now()
	sentToday, err := u.countSentToday(record.UserID, now)
	if err != nil {
		return err
	}

	decision, reason := u.gate.Evaluate(record, msg, policy, sentToday, now)
	switch decision {
	case DecisionManualReview:
		return u.routeToReview(ctx, record, reason)
	case DecisionSend, DecisionWait:
		applied, err := u.records.Transition(record.ID,
			[]domain.ResponseStatus{domain.StatusDraft},
			map[string]interface{}{"status": domain.StatusPendingAutoSend})
		if err != nil {
			return err
		}
		if applied {
			record.Status = domain.StatusPendingAutoSend
		}
	}
	// DecisionHold: the record stays a draft.
	return nil
}

func (u *responseUsecase) GetRecord(userID, recordID string) (*domain.ResponseRecord, error) {
	record, err := u.records.GetByID(recordID)
	if err != nil {
		return nil, err
	}
	if record == nil || record.UserID != userID {
		return nil, ErrRecordNotFound
	}
	return record, nil
}

func (u *responseUsecase) GetStatus(userID, recordID string) (domain.ResponseStatus, error) {
	record, err := u.GetRecord(userID, recordID)
	if err != nil {
		return "", err
	}
	return record.Status, nil
}

func (u *responseUsecase) Approve(ctx context.Context, userID, recordID string) (*domain.ResponseRecord, error) {
	record, err := u.GetRecord(userID, recordID)
	if err != nil {
		return nil, err
	}

	allowed := false
	for _, s := range domain.ApproveStatuses() {
		if record.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, ErrInvalidTransition
	}

	msg, err := u.messages.GetByID(record.OriginalMessageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, fmt.Errorf("original message %s missing for record %s", record.OriginalMessageID, record.ID)
	}

	policy, err := u.loadPolicyLocked(record.UserID)
	if err != nil {
		return nil, err
	}

	if _, err := u.deliver(ctx, record, msg, policy, domain.ApproveStatuses()); err != nil {
		return nil, err
	}
	return u.records.GetByID(record.ID)
}

func (u *responseUsecase) Reject(ctx context.Context, userID, recordID string) error {
	record, err := u.GetRecord(userID, recordID)
	if err != nil {
		return err
	}

	now := time.Now()
	applied, err := u.records.Transition(record.ID, domain.RejectStatuses(), map[string]interface{}{
		"status":      domain.StatusRejected,
		"rejected_at": now,
	})
	if err != nil {
		return err
	}
	if !applied {
		return ErrInvalidTransition
	}
	return nil
}

func (u *responseUsecase) GetDailySummary(userID string, date time.Time) (*repository.DailySummary, error) {
	from := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return u.records.SummarizeDay(userID, from, from.AddDate(0, 0, 1))
}

func (u *responseUsecase) SweepUser(ctx context.Context, userID string) error {
	records, err := u.records.FindSweepable(userID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	policy, err := u.loadPolicy(userID)
	if err != nil {
		return err
	}

	now := time.Now()
	sentToday, err := u.countSentToday(userID, now)
	if err != nil {
		return err
	}

	for _, record := range records {
		msg, err := u.messages.GetByID(record.OriginalMessageID)
		if err != nil {
			return err
		}
		if msg == nil {
			log.Printf("[Pipeline] Original message %s missing, skipping record %s", record.OriginalMessageID, record.ID)
			continue
		}

		decision, reason := u.gate.Evaluate(record, msg, policy, sentToday, now)
		switch decision {
		case DecisionSend:
			sent, err := u.deliver(ctx, record, msg, policy, domain.SweepStatuses())
			if err != nil {
				log.Printf("[Pipeline] Dispatch failed for record %s: %v", record.ID, err)
				continue
			}
			if sent {
				sentToday++
			}
		case DecisionManualReview:
			if err := u.routeToReview(ctx, record, reason); err != nil {
				log.Printf("[Pipeline] Failed to route record %s to review: %v", record.ID, err)
			}
		}
		// Hold and Wait: the record stays where it is for the next sweep.
	}
	return nil
}

// deliver claims a quota slot, performs the transport call and resolves
// the claim. Returns whether a send actually happened.
func (u *responseUsecase) deliver(ctx context.Context, record *domain.ResponseRecord, msg *domain.IncomingMessage, policy *domain.AutomationPolicy, from []domain.ResponseStatus) (bool, error) {
	now := time.Now()
	claimed, err := u.records.ClaimForSend(record, policy.DailyLimit, from, now)
	if err != nil {
		if errors.Is(err, repository.ErrDailyLimitReached) {
			return false, nil
		}
		return false, err
	}
	if !claimed {
		// A reject or a concurrent sweep won the race.
		return false, nil
	}

	to := extractEmailAddress(msg.Sender)
	if to == "" {
		finalizeErr := u.records.FinalizeSendFailed(record.ID, "sender has no usable reply address")
		if finalizeErr != nil {
			return false, finalizeErr
		}
		return false, nil
	}

	sentID, err := u.transport.Send(ctx, record.UserID, to, replySubject(msg.Subject), record.Text, msg.ID)
	if err != nil {
		if ferr := u.records.FinalizeSendFailed(record.ID, err.Error()); ferr != nil {
			return false, ferr
		}
		u.notify(ctx, record.UserID, "Auto-reply failed",
			fmt.Sprintf("Sending the reply to \"%s\" failed.", msg.Subject),
			map[string]string{"record_id": record.ID, "status": string(domain.StatusSendFailed)})
		return false, nil
	}

	if err := u.records.FinalizeSent(record.ID, sentID, time.Now()); err != nil {
		return false, err
	}
	record.Status = domain.StatusSent

	// Index the sent reply so future retrievals can ground on it.
	if u.index != nil {
		if err := u.index.Upsert(ctx, record.UserID, record.ID, "outbound", replySubject(msg.Subject), record.Text, time.Now()); err != nil {
			log.Printf("[Pipeline] Failed to index sent reply %s: %v", record.ID, err)
		}
	}
	return true, nil
}

func (u *responseUsecase) routeToReview(ctx context.Context, record *domain.ResponseRecord, reason string) error {
	applied, err := u.records.Transition(record.ID, domain.SweepStatuses(), map[string]interface{}{
		"status":        domain.StatusManualReviewRequired,
		"review_reason": reason,
	})
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}
	record.Status = domain.StatusManualReviewRequired
	record.ReviewReason = reason

	u.notify(ctx, record.UserID, "Reply needs your review",
		"An auto-generated reply was held back for manual review.",
		map[string]string{"record_id": record.ID, "reason": reason})
	return nil
}

func (u *responseUsecase) SendDailySummary(ctx context.Context, policy *domain.AutomationPolicy, date time.Time) error {
	if policy.SummaryEmailAddress == "" {
		return nil
	}
	summary, err := u.GetDailySummary(policy.UserID, date)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Your auto-reply activity for %s", summary.Date)
	body := formatSummaryEmail(summary)
	if _, err := u.transport.Send(ctx, policy.UserID, policy.SummaryEmailAddress, subject, body, ""); err != nil {
		return fmt.Errorf("failed to send daily summary: %w", err)
	}
	return nil
}

func formatSummaryEmail(s *repository.DailySummary) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Daily auto-reply summary for %s\n\n", s.Date))
	b.WriteString(fmt.Sprintf("Sent automatically: %d\n", s.Sent))
	b.WriteString(fmt.Sprintf("Awaiting dispatch:  %d\n", s.Pending))
	b.WriteString(fmt.Sprintf("Needs your review:  %d\n", s.ManualReview))
	b.WriteString(fmt.Sprintf("Held as drafts:     %d\n", s.Drafted))
	b.WriteString(fmt.Sprintf("Failed to send:     %d\n", s.SendFailed))
	b.WriteString(fmt.Sprintf("Rejected by you:    %d\n", s.Rejected))
	if s.Sent > 0 {
		b.WriteString(fmt.Sprintf("\nAverage confidence of sent replies: %.0f%%\n", s.AvgConfidence*100))
	}
	return b.String()
}

// loadPolicy returns the stored policy or the disabled default. A
// missing policy must never be an error and never enables sending.
func (u *responseUsecase) loadPolicy(userID string) (*domain.AutomationPolicy, error) {
	policy, err := u.policies.GetByUserID(userID)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return domain.DefaultPolicy(userID), nil
	}
	return policy, nil
}

// loadPolicyLocked ensures a policy row exists so ClaimForSend has a
// row to lock, then returns it.
func (u *responseUsecase) loadPolicyLocked(userID string) (*domain.AutomationPolicy, error) {
	return u.policies.GetOrCreate(userID)
}

func (u *responseUsecase) countSentToday(userID string, now time.Time) (int64, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return u.records.CountSentBetween(userID, dayStart, dayStart.AddDate(0, 0, 1))
}

func replySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	if subject == "" {
		return "Re: your message"
	}
	return "Re: " + subject
}

func (u *responseUsecase) notify(ctx context.Context, userID, title, body string, data map[string]string) {
	if u.notifier == nil {
		return
	}
	if err := u.notifier.Notify(ctx, userID, title, body, data); err != nil {
		log.Printf("[Pipeline] Notification failed for user %s: %v", userID, err)
	}
}
