package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mailpilot-backend/internal/response/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSyncStateRepo struct {
	mu     sync.Mutex
	states map[string]time.Time
}

func newFakeSyncStateRepo() *fakeSyncStateRepo {
	return &fakeSyncStateRepo{states: map[string]time.Time{}}
}

func (r *fakeSyncStateRepo) Get(userID string) (*domain.SyncState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.states[userID]; ok {
		return &domain.SyncState{UserID: userID, LastSeenAt: t}, nil
	}
	return nil, nil
}

func (r *fakeSyncStateRepo) Advance(userID string, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if lastSeen.After(r.states[userID]) {
		r.states[userID] = lastSeen
	}
	return nil
}

type fakeSource struct {
	messages []*domain.IncomingMessage
	err      error
	fetches  int
}

func (s *fakeSource) FetchSince(ctx context.Context, userID string, since time.Time) ([]*domain.IncomingMessage, error) {
	s.fetches++
	if s.err != nil {
		return nil, s.err
	}
	var out []*domain.IncomingMessage
	for _, msg := range s.messages {
		if msg.ReceivedAt.After(since) {
			clone := *msg
			out = append(out, &clone)
		}
	}
	return out, nil
}

func inboundMessage(id string, receivedAt time.Time) *domain.IncomingMessage {
	return &domain.IncomingMessage{
		ID:         id,
		UserID:     "user-1",
		Sender:     "Alice <alice@example.com>",
		Subject:    "Status",
		Body:       "Quick status question.",
		ReceivedAt: receivedAt,
	}
}

func newOrchestratorFixture(f *pipelineFixture, source MessageSource, syncStates *fakeSyncStateRepo) *Orchestrator {
	return NewOrchestrator(f.usecase, f.policies, f.messages, syncStates, source, nil, OrchestratorConfig{
		WorkerCount:     2,
		InitialLookback: 24 * time.Hour,
	})
}

func TestIngestUserProcessesAndAdvancesWatermark(t *testing.T) {
	f := newPipelineFixture()
	require.NoError(t, f.policies.Upsert(enabledPolicy("user-1")))

	now := time.Now()
	source := &fakeSource{messages: []*domain.IncomingMessage{
		inboundMessage("msg-a", now.Add(-2*time.Hour)),
		inboundMessage("msg-b", now.Add(-1*time.Hour)),
	}}
	syncStates := newFakeSyncStateRepo()
	o := newOrchestratorFixture(f, source, syncStates)

	require.NoError(t, o.ingestUser(context.Background(), "user-1"))

	// One record per message, and the watermark lands on the newest one.
	assert.Len(t, f.records.records, 2)
	state, _ := syncStates.Get("user-1")
	require.NotNil(t, state)
	assert.True(t, state.LastSeenAt.Equal(now.Add(-1*time.Hour)))
}

func TestIngestUserRetriesFromOldWatermarkAfterFailure(t *testing.T) {
	f := newPipelineFixture()
	require.NoError(t, f.policies.Upsert(enabledPolicy("user-1")))

	source := &fakeSource{err: errors.New("mailbox unreachable")}
	syncStates := newFakeSyncStateRepo()
	o := newOrchestratorFixture(f, source, syncStates)

	require.Error(t, o.ingestUser(context.Background(), "user-1"))

	// No watermark was written, so the next tick refetches everything.
	state, _ := syncStates.Get("user-1")
	assert.Nil(t, state)
	assert.Empty(t, f.records.records)
}

func TestIngestUserIsIdempotentAcrossTicks(t *testing.T) {
	f := newPipelineFixture()
	require.NoError(t, f.policies.Upsert(enabledPolicy("user-1")))

	now := time.Now()
	source := &fakeSource{messages: []*domain.IncomingMessage{
		inboundMessage("msg-a", now.Add(-time.Hour)),
	}}
	syncStates := newFakeSyncStateRepo()
	o := newOrchestratorFixture(f, source, syncStates)

	require.NoError(t, o.ingestUser(context.Background(), "user-1"))
	require.NoError(t, o.ingestUser(context.Background(), "user-1"))

	assert.Len(t, f.records.records, 1)
	assert.Equal(t, 2, source.fetches)
}

func TestOrchestratorStartStop(t *testing.T) {
	f := newPipelineFixture()
	syncStates := newFakeSyncStateRepo()
	o := NewOrchestrator(f.usecase, f.policies, f.messages, syncStates, nil, nil, OrchestratorConfig{
		IngestInterval: 10 * time.Millisecond,
		SweepInterval:  10 * time.Millisecond,
		WorkerCount:    2,
	})

	o.Start()
	time.Sleep(50 * time.Millisecond)
	o.Stop()
}

func TestDispatchPartitionsByUser(t *testing.T) {
	f := newPipelineFixture()
	o := newOrchestratorFixture(f, nil, newFakeSyncStateRepo())
	o.Start()
	defer o.Stop()

	var mu sync.Mutex
	seen := map[string]int{}
	done := make(chan struct{}, 4)
	for i := 0; i < 4; i++ {
		o.dispatch("user-1", func() {
			mu.Lock()
			seen["user-1"]++
			mu.Unlock()
			done <- struct{}{}
		})
	}
	for i := 0; i < 4; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("dispatched job did not run")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 4, seen["user-1"])
}
