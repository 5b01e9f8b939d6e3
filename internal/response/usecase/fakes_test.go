package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mailpilot-backend/internal/response/domain"
	"mailpilot-backend/internal/response/repository"
	"mailpilot-backend/pkg/chroma"

	"gorm.io/gorm"
)

type fakeRecordRepo struct {
	mu      sync.Mutex
	records map[string]*domain.ResponseRecord
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{records: map[string]*domain.ResponseRecord{}}
}

func (r *fakeRecordRepo) Create(record *domain.ResponseRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing.OriginalMessageID == record.OriginalMessageID {
			return gorm.ErrDuplicatedKey
		}
	}
	clone := *record
	r.records[record.ID] = &clone
	return nil
}

func (r *fakeRecordRepo) GetByID(id string) (*domain.ResponseRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[id]; ok {
		clone := *rec
		return &clone, nil
	}
	return nil, nil
}

func (r *fakeRecordRepo) GetByMessageID(messageID string) (*domain.ResponseRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.OriginalMessageID == messageID {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeRecordRepo) FindSweepable(userID string) ([]*domain.ResponseRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ResponseRecord
	for _, rec := range r.records {
		if rec.UserID != userID {
			continue
		}
		if rec.Status == domain.StatusDraft || rec.Status == domain.StatusPendingAutoSend {
			clone := *rec
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeRecordRepo) CountSentBetween(userID string, from, to time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countLocked(userID, from, to), nil
}

func (r *fakeRecordRepo) countLocked(userID string, from, to time.Time) int64 {
	var count int64
	for _, rec := range r.records {
		if rec.UserID != userID || rec.SentAt == nil {
			continue
		}
		if rec.Status != domain.StatusSent && rec.Status != domain.StatusSending {
			continue
		}
		if !rec.SentAt.Before(from) && rec.SentAt.Before(to) {
			count++
		}
	}
	return count
}

func (r *fakeRecordRepo) Transition(id string, from []domain.ResponseStatus, updates map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || !statusIn(rec.Status, from) {
		return false, nil
	}
	applyUpdates(rec, updates)
	return true, nil
}

func (r *fakeRecordRepo) ClaimForSend(record *domain.ResponseRecord, dailyLimit int, from []domain.ResponseStatus, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if r.countLocked(record.UserID, dayStart, dayStart.AddDate(0, 0, 1)) >= int64(dailyLimit) {
		return false, repository.ErrDailyLimitReached
	}
	rec, ok := r.records[record.ID]
	if !ok || !statusIn(rec.Status, from) {
		return false, nil
	}
	rec.Status = domain.StatusSending
	t := now
	rec.SentAt = &t
	return true, nil
}

func (r *fakeRecordRepo) FinalizeSent(id, sentMessageID string, sentAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.Status != domain.StatusSending {
		return nil
	}
	rec.Status = domain.StatusSent
	rec.SentMessageID = sentMessageID
	t := sentAt
	rec.SentAt = &t
	return nil
}

func (r *fakeRecordRepo) FinalizeSendFailed(id, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.Status != domain.StatusSending {
		return nil
	}
	rec.Status = domain.StatusSendFailed
	rec.ErrorMessage = errorMessage
	rec.SentAt = nil
	return nil
}

func (r *fakeRecordRepo) SummarizeDay(userID string, from, to time.Time) (*repository.DailySummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	summary := &repository.DailySummary{Date: from.Format("2006-01-02")}
	var confSum float64
	for _, rec := range r.records {
		if rec.UserID != userID {
			continue
		}
		if rec.Status == domain.StatusSent && rec.SentAt != nil && !rec.SentAt.Before(from) && rec.SentAt.Before(to) {
			summary.Sent++
			confSum += rec.Confidence
			continue
		}
		if rec.CreatedAt.Before(from) || !rec.CreatedAt.Before(to) {
			continue
		}
		switch rec.Status {
		case domain.StatusDraft:
			summary.Drafted++
		case domain.StatusPendingAutoSend:
			summary.Pending++
		case domain.StatusManualReviewRequired:
			summary.ManualReview++
		case domain.StatusSendFailed:
			summary.SendFailed++
		case domain.StatusRejected:
			summary.Rejected++
		}
	}
	if summary.Sent > 0 {
		summary.AvgConfidence = confSum / float64(summary.Sent)
	}
	return summary, nil
}

func statusIn(s domain.ResponseStatus, in []domain.ResponseStatus) bool {
	for _, candidate := range in {
		if s == candidate {
			return true
		}
	}
	return false
}

func applyUpdates(rec *domain.ResponseRecord, updates map[string]interface{}) {
	for key, value := range updates {
		switch key {
		case "status":
			rec.Status = value.(domain.ResponseStatus)
		case "review_reason":
			rec.ReviewReason = value.(string)
		case "error_message":
			rec.ErrorMessage = value.(string)
		case "rejected_at":
			t := value.(time.Time)
			rec.RejectedAt = &t
		}
	}
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages map[string]*domain.IncomingMessage
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: map[string]*domain.IncomingMessage{}}
}

func (r *fakeMessageRepo) Save(message *domain.IncomingMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[message.ID]; !ok {
		clone := *message
		r.messages[message.ID] = &clone
	}
	return nil
}

func (r *fakeMessageRepo) GetByID(id string) (*domain.IncomingMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg, ok := r.messages[id]; ok {
		clone := *msg
		return &clone, nil
	}
	return nil, nil
}

type fakePolicyRepo struct {
	mu       sync.Mutex
	policies map[string]*domain.AutomationPolicy
}

func newFakePolicyRepo() *fakePolicyRepo {
	return &fakePolicyRepo{policies: map[string]*domain.AutomationPolicy{}}
}

func (r *fakePolicyRepo) GetByUserID(userID string) (*domain.AutomationPolicy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.policies[userID]; ok {
		clone := *p
		return &clone, nil
	}
	return nil, nil
}

func (r *fakePolicyRepo) GetOrCreate(userID string) (*domain.AutomationPolicy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.policies[userID]; ok {
		clone := *p
		return &clone, nil
	}
	p := domain.DefaultPolicy(userID)
	r.policies[userID] = p
	clone := *p
	return &clone, nil
}

func (r *fakePolicyRepo) Upsert(policy *domain.AutomationPolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *policy
	r.policies[policy.UserID] = &clone
	return nil
}

func (r *fakePolicyRepo) List() ([]*domain.AutomationPolicy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.AutomationPolicy
	for _, p := range r.policies {
		clone := *p
		out = append(out, &clone)
	}
	return out, nil
}

type fakeRuleRepo struct {
	rules []*domain.ResponseRule
}

func (r *fakeRuleRepo) FindActiveByUser(userID string) ([]*domain.ResponseRule, error) {
	var out []*domain.ResponseRule
	for _, rule := range r.rules {
		if rule.UserID == userID && rule.IsActive {
			out = append(out, rule)
		}
	}
	return out, nil
}

type fakeProfileRepo struct {
	profile *domain.StyleProfile
}

func (r *fakeProfileRepo) GetByUserID(userID string) (*domain.StyleProfile, error) {
	return r.profile, nil
}

type fakeTransport struct {
	mu    sync.Mutex
	calls int
	err   error
	sent  []string
}

func (t *fakeTransport) Send(ctx context.Context, userID, to, subject, body, inReplyTo string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if t.err != nil {
		return "", t.err
	}
	id := fmt.Sprintf("sent-%d", t.calls)
	t.sent = append(t.sent, to)
	return id, nil
}

func (t *fakeTransport) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *fakeNotifier) Notify(ctx context.Context, userID, title, body string, data map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, title)
	return nil
}

type fakeIndex struct {
	results []chroma.SearchResult
	err     error
	upserts int
}

func (f *fakeIndex) Search(ctx context.Context, userID, query string, k int) ([]chroma.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeIndex) Upsert(ctx context.Context, userID, sourceID, direction, subject, body string, timestamp time.Time) error {
	f.upserts++
	return nil
}

func fakeIndexResult(sourceID string) chroma.SearchResult {
	return chroma.SearchResult{Text: "fragment " + sourceID, SourceID: sourceID, Similarity: 0.8}
}

type pipelineFixture struct {
	records   *fakeRecordRepo
	messages  *fakeMessageRepo
	policies  *fakePolicyRepo
	rules     *fakeRuleRepo
	profiles  *fakeProfileRepo
	transport *fakeTransport
	notifier  *fakeNotifier
	usecase   ResponseUsecase
}

func newPipelineFixture() *pipelineFixture {
	f := &pipelineFixture{
		records:   newFakeRecordRepo(),
		messages:  newFakeMessageRepo(),
		policies:  newFakePolicyRepo(),
		rules:     &fakeRuleRepo{},
		profiles:  &fakeProfileRepo{},
		transport: &fakeTransport{},
		notifier:  &fakeNotifier{},
	}
	f.usecase = NewResponseUsecase(
		f.records, f.messages, f.policies, f.rules, f.profiles,
		NewContextRetriever(nil, 2000, 10, time.Second),
		NewGenerator(nil, time.Second),
		NewStyleAdapter(),
		NewDispatchGate(nil),
		f.transport, f.notifier, nil,
	)
	return f
}

func (f *pipelineFixture) seedRecord(rec *domain.ResponseRecord) {
	f.records.mu.Lock()
	defer f.records.mu.Unlock()
	clone := *rec
	f.records.records[rec.ID] = &clone
}
