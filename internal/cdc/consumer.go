package cdc

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/reifydb/reifydb-sub012/internal/key"
	"github.com/reifydb/reifydb-sub012/internal/storage"
)

// mailboxCapacity matches spec §5's actor mailbox sizing.
const mailboxCapacity = 16

// watermarkRetries is how many 50ms CheckWatermark retries a consumer
// performs before proceeding anyway (mirrors the original's "timeout —
// proceed anyway" fallback).
const watermarkRetries = 4

const watermarkRetryInterval = 50 * time.Millisecond

// CurrentVersionFunc reports the database's latest assigned commit
// version.
type CurrentVersionFunc func(ctx context.Context) (uint64, error)

// DoneUntilFunc reports the safe watermark: every commit at or below it is
// fully durable and has had its CDC record produced.
type DoneUntilFunc func(ctx context.Context) (uint64, error)

// ConsumeFunc delivers a batch of CDC records to user code. It may block;
// the actor dispatches it on its own goroutine and resumes when it
// returns (spec §5 "Consumer actor handlers never block on user code").
type ConsumeFunc func(ctx context.Context, records []Cdc) error

// consumerState is the poll actor's phase (spec §5 "Ready/WaitingFor
// Watermark/WaitingForConsume").
type consumerState uint8

const (
	stateReady consumerState = iota
	stateWaitingForWatermark
	stateWaitingForConsume
)

type pollMsg struct {
	kind          pollMsgKind
	watermarkVersion uint64
	consumeErr    error
	consumedCount int
	latestVersion uint64
}

type pollMsgKind uint8

const (
	msgPoll pollMsgKind = iota
	msgCheckWatermark
	msgConsumeResponse
)

// Consumer is a cooperative actor driving one consumer's CDC progress
// through a mailbox of poll messages (spec §2 component C "watermark-
// gated consumption with per-consumer checkpoints").
type Consumer struct {
	ID           ConsumerID
	Backend      storage.Backend
	PollInterval time.Duration
	MaxBatchSize int // 0 = unbounded

	CurrentVersion CurrentVersionFunc
	DoneUntil      DoneUntilFunc
	Consume        ConsumeFunc

	mailbox chan pollMsg
}

// NewConsumer constructs a consumer actor. Callers must set the function
// fields before calling Run.
func NewConsumer(id ConsumerID, backend storage.Backend, pollInterval time.Duration, maxBatchSize int) *Consumer {
	return &Consumer{
		ID:           id,
		Backend:      backend,
		PollInterval: pollInterval,
		MaxBatchSize: maxBatchSize,
		mailbox:      make(chan pollMsg, mailboxCapacity),
	}
}

// postAsync schedules msg for delivery after d, or immediately if d is 0.
// It never blocks the caller.
func (c *Consumer) postAsync(ctx context.Context, d time.Duration, msg pollMsg) {
	go func() {
		if d > 0 {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
		select {
		case c.mailbox <- msg:
		case <-ctx.Done():
		}
	}()
}

// Run starts the actor loop. It blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	c.postAsync(ctx, 0, pollMsg{kind: msgPoll})

	state := stateReady
	var waitingVersion uint64
	var waitingRetries int

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.mailbox:
			switch msg.kind {
			case msgPoll:
				if state != stateReady {
					continue
				}
				cur, err := c.CurrentVersion(ctx)
				if err != nil {
					log.Printf("cdc consumer %s: current_version: %v", c.ID, err)
					c.postAsync(ctx, c.PollInterval, pollMsg{kind: msgPoll})
					continue
				}
				done, err := c.DoneUntil(ctx)
				if err != nil {
					log.Printf("cdc consumer %s: done_until: %v", c.ID, err)
					c.postAsync(ctx, c.PollInterval, pollMsg{kind: msgPoll})
					continue
				}
				if done >= cur {
					state = stateWaitingForConsume
					c.startConsume(ctx, cur)
				} else {
					state = stateWaitingForWatermark
					waitingVersion = cur
					waitingRetries = watermarkRetries
					c.postAsync(ctx, watermarkRetryInterval, pollMsg{kind: msgCheckWatermark})
				}

			case msgCheckWatermark:
				if state != stateWaitingForWatermark {
					continue
				}
				done, err := c.DoneUntil(ctx)
				ready := err == nil && done >= waitingVersion
				if ready || waitingRetries == 0 {
					state = stateWaitingForConsume
					c.startConsume(ctx, waitingVersion)
				} else {
					waitingRetries--
					c.postAsync(ctx, watermarkRetryInterval, pollMsg{kind: msgCheckWatermark})
				}

			case msgConsumeResponse:
				state = stateReady
				if msg.consumeErr != nil {
					log.Printf("cdc consumer %s: consume failed: %v", c.ID, msg.consumeErr)
					c.postAsync(ctx, c.PollInterval, pollMsg{kind: msgPoll})
					continue
				}
				if msg.consumedCount > 0 {
					// Drain any remaining backlog immediately.
					c.postAsync(ctx, 0, pollMsg{kind: msgPoll})
				} else {
					c.postAsync(ctx, c.PollInterval, pollMsg{kind: msgPoll})
				}
			}
		}
	}
}

// startConsume fetches the next batch past the checkpoint up to
// targetVersion and dispatches it to Consume on its own goroutine, so the
// actor's handler never blocks on user code.
func (c *Consumer) startConsume(ctx context.Context, targetVersion uint64) {
	checkpoint, err := c.loadCheckpoint(ctx)
	if err != nil {
		c.postAsync(ctx, 0, pollMsg{kind: msgConsumeResponse, consumeErr: err})
		return
	}

	records, err := c.fetchBatch(ctx, checkpoint, targetVersion)
	if err != nil {
		c.postAsync(ctx, 0, pollMsg{kind: msgConsumeResponse, consumeErr: err})
		return
	}
	if len(records) == 0 {
		c.postAsync(ctx, 0, pollMsg{kind: msgConsumeResponse})
		return
	}

	go func() {
		err := c.Consume(ctx, records)
		if err == nil {
			last := records[len(records)-1].Version
			if err = c.saveCheckpoint(ctx, last); err == nil {
				c.postAsync(ctx, 0, pollMsg{kind: msgConsumeResponse, consumedCount: len(records), latestVersion: last})
				return
			}
		}
		c.postAsync(ctx, 0, pollMsg{kind: msgConsumeResponse, consumeErr: err})
	}()
}

func (c *Consumer) loadCheckpoint(ctx context.Context) (uint64, error) {
	rec, ok, err := c.Backend.Get(ctx, key.CdcConsumerKey(uuid.UUID(c.ID)), ^uint64(0))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return DecodeCheckpoint(rec.Values)
}

func (c *Consumer) saveCheckpoint(ctx context.Context, version uint64) error {
	return c.Backend.Commit(ctx, []storage.Delta{
		{Kind: storage.DeltaSet, Key: key.CdcConsumerKey(uuid.UUID(c.ID)), Values: EncodeCheckpoint(version)},
	}, version)
}

func (c *Consumer) fetchBatch(ctx context.Context, after, upTo uint64) ([]Cdc, error) {
	start := key.CdcKey(after + 1)
	end := key.CdcKey(upTo + 1)

	it, err := c.Backend.Range(ctx, start, end, upTo)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var records []Cdc
	for it.Next() {
		if c.MaxBatchSize > 0 && len(records) >= c.MaxBatchSize {
			break
		}
		rec, err := DecodeCdc(it.Record().Values)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, it.Err()
}
