package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Bus fans recent edits out to live subscribers on top of the durable
// EditLog. The subscriber registry has its own lock, never held while the
// store is written: RecordEdit appends first, then broadcasts, so a failed
// delivery can never lose a committed edit.
type Bus struct {
	log    *EditLog
	cfg    *BusConfig
	logger *slog.Logger

	mu        sync.Mutex
	subs      map[string]*subscriber
	auditSubs map[string]chan StatusEvent
}

type subscriber struct {
	id       string
	clientID string
	ch       chan RecentEditRecord

	// replaySeq is the high-water mark of the subscribe-time replay. It is
	// fixed at registration: live broadcasts at or below it were already
	// replayed and are skipped, everything above it is delivered as it
	// arrives. It must not advance on live delivery — concurrent writers
	// commit in seq order but broadcast in arrival order, and a moving
	// mark would silently swallow the late broadcast of an earlier seq.
	replaySeq int64
}

// Subscription is a live, one-way edit stream. The channel is closed when
// the subscription is cancelled or the subscriber falls too far behind;
// the client then reconnects with its last-seen cursor and replays the gap.
type Subscription struct {
	ID       string
	ClientID string
	C        <-chan RecentEditRecord
	bus      *Bus
}

// Close releases the subscriber slot. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s.ID)
}

// NewBus creates a notification bus over the given edit log.
func NewBus(log *EditLog, cfg *BusConfig, logger *slog.Logger) *Bus {
	if cfg == nil {
		cfg = DefaultBusConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		log:       log,
		cfg:       cfg,
		logger:    logger,
		subs:      make(map[string]*subscriber),
		auditSubs: make(map[string]chan StatusEvent),
	}
}

// RecordEdit appends an edit to the durable log and publishes it to all
// live subscribers. A failed append is fatal to the write; a failed
// delivery affects only that subscriber.
func (b *Bus) RecordEdit(assetID, editType string, bbox []float64, roadName, ward string) (*RecentEditRecord, error) {
	rec := &RecentEditRecord{
		ID:          uuid.New().String(),
		RoadAssetID: assetID,
		EditType:    editType,
		BBox:        JSONBBox(bbox),
		RoadName:    roadName,
		Ward:        ward,
		EditedAt:    time.Now(),
	}
	if err := b.log.Append(rec); err != nil {
		return nil, err
	}
	b.Broadcast(*rec)
	return rec, nil
}

// Broadcast delivers a committed edit to all live subscribers. Called by
// RecordEdit, and by stores that append the edit record inside their own
// transaction, after that transaction commits.
func (b *Bus) Broadcast(rec RecentEditRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs {
		if rec.Seq <= sub.replaySeq {
			// Already delivered during replay.
			continue
		}
		select {
		case sub.ch <- rec:
		default:
			// Slow subscriber: drop it alone. The durable log makes the
			// edit replayable on reconnect, so this costs liveness, not data.
			b.logger.Warn("dropping slow subscriber", "subscription", id, "client", sub.clientID)
			close(sub.ch)
			delete(b.subs, id)
		}
	}
}

// Subscribe opens a live edit stream for a client. since is the client's
// last-seen cursor (0 for none); the gap is replayed from the durable log
// before live delivery resumes. Replay and registration happen under the
// registry lock so no concurrent Broadcast can slip an edit between them.
func (b *Bus) Subscribe(ctx context.Context, clientID string, since int64) (*Subscription, error) {
	b.mu.Lock()
	if len(b.subs) >= b.cfg.MaxSubscribers {
		b.mu.Unlock()
		return nil, fmt.Errorf("subscriber limit reached (%d)", b.cfg.MaxSubscribers)
	}

	replay, err := b.log.Since(since, b.cfg.ReplayLimit)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}

	sub := &subscriber{
		id:        uuid.New().String(),
		clientID:  clientID,
		ch:        make(chan RecentEditRecord, len(replay)+b.cfg.SubscriberBuffer),
		replaySeq: since,
	}
	for _, rec := range replay {
		sub.ch <- rec
		if rec.Seq > sub.replaySeq {
			sub.replaySeq = rec.Seq
		}
	}
	b.subs[sub.id] = sub
	b.mu.Unlock()

	b.logger.Debug("subscriber registered",
		"subscription", sub.id, "client", clientID, "since", since, "replayed", len(replay))

	if ctx != nil {
		go func() {
			<-ctx.Done()
			b.unsubscribe(sub.id)
		}()
	}

	return &Subscription{ID: sub.id, ClientID: clientID, C: sub.ch, bus: b}, nil
}

func (b *Bus) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		close(sub.ch)
		delete(b.subs, id)
	}
}

// SubscriberCount returns the number of live edit subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// PublishStatusChange publishes a workflow audit event on the internal
// channel. Satisfies the lifecycle engine's publisher interface. Live-only:
// the durable side of this channel lives in the workflow store.
func (b *Bus) PublishStatusChange(kind, entityID, from, to, actor string, at time.Time) {
	evt := StatusEvent{Kind: kind, EntityID: entityID, From: from, To: to, Actor: actor, At: at}
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.auditSubs {
		select {
		case ch <- evt:
		default:
			b.logger.Warn("dropping slow audit subscriber", "subscription", id)
			close(ch)
			delete(b.auditSubs, id)
		}
	}
}

// SubscribeStatus opens a live stream of workflow audit events. The
// returned cancel function releases the slot.
func (b *Bus) SubscribeStatus(ctx context.Context, clientID string) (<-chan StatusEvent, func()) {
	id := uuid.New().String()
	ch := make(chan StatusEvent, b.cfg.SubscriberBuffer)

	b.mu.Lock()
	b.auditSubs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.auditSubs[id]; ok {
			close(c)
			delete(b.auditSubs, id)
		}
	}
	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return ch, cancel
}
