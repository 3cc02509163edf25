package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/ylog/internal/domain"
	"github.com/bft-labs/ylog/internal/logsheet"
	"github.com/bft-labs/ylog/internal/ports"
	"github.com/bft-labs/ylog/internal/relay"
)

// Defaults for HubConfig.
const (
	DefaultQueueSize       = 256
	DefaultMaxBatchRecords = 64
	DefaultSinkTimeout     = 5 * time.Second
)

// HubConfig tunes the relay hub.
type HubConfig struct {
	// QueueSize bounds the number of accepted submissions waiting to be persisted.
	QueueSize int

	// MaxBatchRecords bounds how many submissions share one logsheet bracket.
	MaxBatchRecords int

	// SinkTimeout bounds each append to the logsheet sink.
	SinkTimeout time.Duration
}

func (c HubConfig) withDefaults() HubConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.MaxBatchRecords <= 0 {
		c.MaxBatchRecords = DefaultMaxBatchRecords
	}
	if c.SinkTimeout <= 0 {
		c.SinkTimeout = DefaultSinkTimeout
	}
	return c
}

// PersistEventEmitter is notified after every batch append attempt.
type PersistEventEmitter interface {
	OnPersisted(records int, lastSequence uint64, d time.Duration)
	OnPersistError(err error, records int)
}

// Hub fans submissions from many connections into one persistence consumer
// and broadcasts acknowledgements back to every open connection.
type Hub struct {
	config    HubConfig
	sink      ports.LogSink
	stateRepo ports.StateRepository
	logger    ports.Logger
	emitter   PersistEventEmitter
	batcher   *Batcher
	queue     chan domain.Submission

	mu         sync.Mutex
	nextSeq    uint64
	closed     bool
	superseded map[uint64]struct{}
	peers      map[string]ports.Peer
	state      domain.State
}

// NewHub creates a hub persisting to sink. stateRepo and emitter may be nil.
func NewHub(cfg HubConfig, sink ports.LogSink, stateRepo ports.StateRepository, logger ports.Logger, emitter PersistEventEmitter) *Hub {
	cfg = cfg.withDefaults()
	return &Hub{
		config:     cfg,
		sink:       sink,
		stateRepo:  stateRepo,
		logger:     logger,
		emitter:    emitter,
		batcher:    NewBatcher(cfg.MaxBatchRecords),
		queue:      make(chan domain.Submission, cfg.QueueSize),
		superseded: make(map[uint64]struct{}),
		peers:      make(map[string]ports.Peer),
	}
}

// Restore loads the relay state so sequence ids continue after the last
// settled one, persisted or failed. It must be called before Run.
func (h *Hub) Restore(ctx context.Context) error {
	if h.stateRepo == nil {
		return nil
	}
	st, err := h.stateRepo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load relay state: %w", err)
	}

	h.mu.Lock()
	h.state = st
	h.nextSeq = st.LastSequence
	h.mu.Unlock()

	if !st.IsEmpty() {
		h.logger.Info("resuming relay session",
			ports.Uint64("last_sequence", st.LastSequence),
			ports.Uint64("records", st.Records),
		)
	}
	return nil
}

// Register adds an open connection to the broadcast set.
func (h *Hub) Register(p ports.Peer) error {
	if !p.State().Deliverable() {
		return fmt.Errorf("register %s in state %s: %w", p.ID(), p.State(), domain.ErrInvalidTransition)
	}
	h.mu.Lock()
	h.peers[p.ID()] = p
	n := len(h.peers)
	h.mu.Unlock()

	h.logger.Debug("peer registered", ports.String("conn", p.ID()), ports.Int("peers", n))
	return nil
}

// Unregister removes a connection from the broadcast set.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	delete(h.peers, id)
	n := len(h.peers)
	h.mu.Unlock()

	h.logger.Debug("peer unregistered", ports.String("conn", id), ports.Int("peers", n))
}

// PeerCount returns the number of registered connections.
func (h *Hub) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// DisconnectAll closes every registered connection.
func (h *Hub) DisconnectAll() {
	h.mu.Lock()
	peers := make([]ports.Peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	for _, p := range peers {
		if err := p.Close(); err != nil {
			h.logger.Debug("close peer", ports.String("conn", p.ID()), ports.Err(err))
		}
	}
}

// LastSequence returns the last sequence id handed out.
func (h *Hub) LastSequence() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nextSeq
}

// HandleSubmission processes one raw inbound frame from connID.
//
// The returned message is what the connection layer should do next: a
// KindError message goes back to the submitter only, a KindSubmit message
// is the accepted submission echoed with its sequence id (nothing is sent;
// the ack follows once persisted), and KindPing needs no reply.
func (h *Hub) HandleSubmission(connID string, raw []byte) relay.Message {
	m, err := relay.Decode(raw)
	if err != nil {
		h.logger.Debug("malformed message", ports.String("conn", connID), ports.Err(err))
		return relay.NewError(relay.ReasonMalformed, "", 0)
	}

	switch m.Kind {
	case relay.KindPing:
		return m
	case relay.KindSubmit:
		return h.Submit(connID, m)
	default:
		// Acks and errors flow hub to station only.
		return relay.NewError(relay.ReasonMalformed, m.Ref, 0)
	}
}

// Submit validates and enqueues a decoded submit message.
func (h *Hub) Submit(connID string, m relay.Message) relay.Message {
	if m.Contact == nil {
		return relay.NewError(relay.ReasonMalformed, m.Ref, 0)
	}
	contact, err := domain.NewContact(*m.Contact)
	if err != nil {
		return relay.NewError(err.Error(), m.Ref, 0)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return relay.NewError(relay.ReasonShuttingDown, m.Ref, 0)
	}
	if m.Supersedes != 0 {
		if reason := h.checkSupersedesLocked(m.Supersedes); reason != "" {
			e := &domain.InvalidRecordError{Violations: []domain.Violation{{Field: domain.FieldSupersedes, Reason: reason}}}
			return relay.NewError(e.Error(), m.Ref, 0)
		}
	}

	sub := domain.Submission{
		Sequence:   h.nextSeq + 1,
		Contact:    contact,
		Supersedes: m.Supersedes,
		Origin:     connID,
		Ref:        m.Ref,
		AcceptedAt: time.Now().UTC(),
	}

	select {
	case h.queue <- sub:
	default:
		h.logger.Warn("submission queue full", ports.String("conn", connID))
		return relay.NewError(relay.ReasonQueueFull, m.Ref, 0)
	}

	h.nextSeq = sub.Sequence
	if sub.Supersedes != 0 {
		h.superseded[sub.Supersedes] = struct{}{}
	}

	echo := relay.NewSubmit(contact.Fields(), sub.Supersedes, sub.Ref)
	echo.Sequence = sub.Sequence
	return echo
}

func (h *Hub) checkSupersedesLocked(id uint64) string {
	if id > h.nextSeq {
		return fmt.Sprintf("sequence %d was never assigned", id)
	}
	if _, ok := h.superseded[id]; ok {
		return fmt.Sprintf("sequence %d is already superseded", id)
	}
	return ""
}

// Run consumes the queue until ctx is cancelled. On cancellation it stops
// accepting, persists everything still queued and returns ctx.Err().
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			h.closed = true
			h.mu.Unlock()

			h.drain()
			if h.batcher.HasPending() {
				h.flush(ctx)
			}
			h.logger.Info("hub stopped", ports.Uint64("last_sequence", h.LastSequence()))
			return ctx.Err()

		case sub := <-h.queue:
			if !h.batcher.Add(sub) {
				h.drain()
			}
			h.flush(ctx)
		}
	}
}

// drain moves queued submissions into the batch without blocking.
func (h *Hub) drain() {
	for !h.batcher.Full() {
		select {
		case sub := <-h.queue:
			h.batcher.Add(sub)
		default:
			return
		}
	}
}

// flush appends the pending batch and notifies peers. Shutdown continues
// to flush, so the sink deadline is detached from ctx cancellation.
func (h *Hub) flush(ctx context.Context) {
	for {
		h.flushBatch(ctx)
		h.batcher.Reset()

		// Anything left over after a full batch during shutdown.
		h.mu.Lock()
		closed := h.closed
		h.mu.Unlock()
		if !closed {
			return
		}
		h.drain()
		if !h.batcher.HasPending() {
			return
		}
	}
}

func (h *Hub) flushBatch(ctx context.Context) {
	batch := h.batcher.Batch()
	if batch.Empty() {
		return
	}
	start := time.Now()

	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.config.SinkTimeout)
	defer cancel()
	err := logsheet.EncodeAndAppend(sinkCtx, h.sink, batch.Contacts())

	if err != nil {
		h.persistFailed(ctx, err, batch)
		return
	}

	last := batch.Last().Sequence
	h.mu.Lock()
	h.state.UpdateAfterPersist(last, batch.Size())
	h.mu.Unlock()
	h.saveState(ctx)

	d := time.Since(start)
	h.logger.Debug("batch persisted",
		ports.Int("records", batch.Size()),
		ports.Uint64("last_sequence", last),
		ports.Duration("took", d),
	)
	if h.emitter != nil {
		h.emitter.OnPersisted(batch.Size(), last, d)
	}

	for _, sub := range batch.Submissions {
		h.broadcast(relay.NewAck(sub))
	}
}

// saveState writes the relay state with its own deadline, so a batch that
// used up the sink timeout still records its sequence ids.
func (h *Hub) saveState(ctx context.Context) {
	if h.stateRepo == nil {
		return
	}
	h.mu.Lock()
	st := h.state
	h.mu.Unlock()

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.config.SinkTimeout)
	defer cancel()
	if err := h.stateRepo.Save(saveCtx, st); err != nil {
		// The next batch saves again; a restart before that reuses ids.
		h.logger.Error("failed to save relay state",
			ports.Uint64("last_sequence", st.LastSequence),
			ports.Err(err),
		)
	}
}

func (h *Hub) persistFailed(ctx context.Context, err error, batch *domain.Batch) {
	h.logger.Error("logsheet append failed",
		ports.Int("records", batch.Size()),
		ports.Err(err),
	)
	if h.emitter != nil {
		h.emitter.OnPersistError(err, batch.Size())
	}

	h.mu.Lock()
	for _, sub := range batch.Submissions {
		if sub.Supersedes != 0 {
			delete(h.superseded, sub.Supersedes)
		}
	}
	h.state.UpdateAfterFailure(batch.Last().Sequence)
	h.mu.Unlock()
	h.saveState(ctx)

	for _, sub := range batch.Submissions {
		h.sendTo(sub.Origin, relay.NewError(relay.ReasonSinkUnavailable, sub.Ref, sub.Sequence))
	}
}

// broadcast queues msg for every open peer. Departed peers are skipped; a
// stalled peer holds the consumer for at most its write timeout, then it
// is closed.
func (h *Hub) broadcast(msg relay.Message) {
	h.mu.Lock()
	peers := make([]ports.Peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	for _, p := range peers {
		if !p.State().Deliverable() {
			continue
		}
		if !p.Send(msg) {
			h.logger.Debug("dropped message for peer",
				ports.String("conn", p.ID()),
				ports.Uint64("sequence", msg.Sequence),
			)
		}
	}
}

func (h *Hub) sendTo(id string, msg relay.Message) {
	h.mu.Lock()
	p, ok := h.peers[id]
	h.mu.Unlock()
	if !ok || !p.State().Deliverable() {
		return
	}
	p.Send(msg)
}
