package usecase

import (
	"context"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"mailpilot-backend/internal/response/domain"
	"mailpilot-backend/internal/response/repository"
)

// MessageSource pulls a user's messages newer than the ingest watermark.
type MessageSource interface {
	FetchSince(ctx context.Context, userID string, since time.Time) ([]*domain.IncomingMessage, error)
}

// OrchestratorConfig tunes the scheduler cadences and pool size.
type OrchestratorConfig struct {
	IngestInterval  time.Duration
	SweepInterval   time.Duration
	SummaryInterval time.Duration
	WorkerCount     int
	// InitialLookback bounds the first fetch for users without a
	// watermark yet.
	InitialLookback time.Duration
}

func (c *OrchestratorConfig) applyDefaults() {
	if c.IngestInterval <= 0 {
		c.IngestInterval = 60 * time.Second
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 120 * time.Second
	}
	if c.SummaryInterval <= 0 {
		c.SummaryInterval = 24 * time.Hour
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = 4
	}
	if c.InitialLookback <= 0 {
		c.InitialLookback = 24 * time.Hour
	}
}

// Orchestrator drives the pipeline on periodic ticks. Work is
// partitioned by user: one user's jobs always land on the same worker,
// so a user's watermark and quota are never raced by two workers.
// Cross-user work runs fully parallel.
type Orchestrator struct {
	usecase    ResponseUsecase
	policies   repository.PolicyRepository
	messages   repository.MessageRepository
	syncStates repository.SyncStateRepository
	source     MessageSource
	index      SemanticIndex
	cfg        OrchestratorConfig

	workers   []chan func()
	tickerWg  sync.WaitGroup
	workerWg  sync.WaitGroup
	stop      chan struct{}
}

func NewOrchestrator(
	uc ResponseUsecase,
	policies repository.PolicyRepository,
	messages repository.MessageRepository,
	syncStates repository.SyncStateRepository,
	source MessageSource,
	index SemanticIndex,
	cfg OrchestratorConfig,
) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{
		usecase:    uc,
		policies:   policies,
		messages:   messages,
		syncStates: syncStates,
		source:     source,
		index:      index,
		cfg:        cfg,
		stop:       make(chan struct{}),
	}
}

// Start spins up the worker pool and the three ticker loops.
func (o *Orchestrator) Start() {
	o.workers = make([]chan func(), o.cfg.WorkerCount)
	for i := range o.workers {
		ch := make(chan func(), 16)
		o.workers[i] = ch
		o.workerWg.Add(1)
		go func() {
			defer o.workerWg.Done()
			for job := range ch {
				job()
			}
		}()
	}

	o.tickerWg.Add(3)
	go o.runTicker(o.cfg.IngestInterval, o.ingestTick)
	go o.runTicker(o.cfg.SweepInterval, o.sweepTick)
	go o.runTicker(o.cfg.SummaryInterval, o.summaryTick)

	log.Printf("[Orchestrator] Started with %d workers (ingest %s, sweep %s, summary %s)",
		o.cfg.WorkerCount, o.cfg.IngestInterval, o.cfg.SweepInterval, o.cfg.SummaryInterval)
}

// Stop halts the tickers first so nothing new is dispatched, then
// drains the workers and waits for in-flight jobs to finish.
func (o *Orchestrator) Stop() {
	close(o.stop)
	o.tickerWg.Wait()
	for _, ch := range o.workers {
		close(ch)
	}
	o.workerWg.Wait()
	log.Println("[Orchestrator] Stopped")
}

func (o *Orchestrator) runTicker(interval time.Duration, tick func()) {
	defer o.tickerWg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-o.stop:
			return
		case <-ticker.C:
			tick()
		}
	}
}

// dispatch routes a job to the user's worker. Dropping a job on
// shutdown is fine; ticks are idempotent and the next one retries.
func (o *Orchestrator) dispatch(userID string, job func()) {
	h := fnv.New32a()
	h.Write([]byte(userID))
	ch := o.workers[int(h.Sum32())%len(o.workers)]
	select {
	case <-o.stop:
	case ch <- job:
	}
}

// optedInUsers are the users with a stored policy; storing a policy is
// what opts a user into the scheduler.
func (o *Orchestrator) optedInUsers() []*domain.AutomationPolicy {
	policies, err := o.policies.List()
	if err != nil {
		log.Printf("[Orchestrator] Failed to list policies: %v", err)
		return nil
	}
	return policies
}

func (o *Orchestrator) ingestTick() {
	if o.source == nil {
		return
	}
	for _, policy := range o.optedInUsers() {
		userID := policy.UserID
		o.dispatch(userID, func() {
			if err := o.ingestUser(context.Background(), userID); err != nil {
				log.Printf("[Orchestrator] Ingest failed for user %s: %v", userID, err)
			}
		})
	}
}

// ingestUser pulls messages behind the watermark and runs the pipeline
// for each. The watermark only advances after every fetched message has
// been persisted and processed, so a failed tick is retried in full.
func (o *Orchestrator) ingestUser(ctx context.Context, userID string) error {
	state, err := o.syncStates.Get(userID)
	if err != nil {
		return err
	}
	since := time.Now().Add(-o.cfg.InitialLookback)
	if state != nil {
		since = state.LastSeenAt
	}

	msgs, err := o.source.FetchSince(ctx, userID, since)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	latest := since
	for _, msg := range msgs {
		msg.UserID = userID
		if err := o.messages.Save(msg); err != nil {
			return err
		}
		if o.index != nil {
			if err := o.index.Upsert(ctx, userID, msg.ID, "inbound", msg.Subject, msg.Body, msg.ReceivedAt); err != nil {
				log.Printf("[Orchestrator] Failed to index message %s: %v", msg.ID, err)
			}
		}
		if _, err := o.usecase.ProcessMessage(ctx, msg); err != nil {
			return err
		}
		if msg.ReceivedAt.After(latest) {
			latest = msg.ReceivedAt
		}
	}

	if latest.After(since) {
		return o.syncStates.Advance(userID, latest)
	}
	return nil
}

func (o *Orchestrator) sweepTick() {
	for _, policy := range o.optedInUsers() {
		if !policy.AutoSendEnabled {
			continue
		}
		userID := policy.UserID
		o.dispatch(userID, func() {
			if err := o.usecase.SweepUser(context.Background(), userID); err != nil {
				log.Printf("[Orchestrator] Sweep failed for user %s: %v", userID, err)
			}
		})
	}
}

func (o *Orchestrator) summaryTick() {
	date := time.Now()
	for _, policy := range o.optedInUsers() {
		p := policy
		o.dispatch(p.UserID, func() {
			if err := o.usecase.SendDailySummary(context.Background(), p, date); err != nil {
				log.Printf("[Orchestrator] Daily summary failed for user %s: %v", p.UserID, err)
			}
		})
	}
}
