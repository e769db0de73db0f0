package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agenthands/neobatch/internal/config"
	"github.com/agenthands/neobatch/internal/core/compiler"
	"github.com/agenthands/neobatch/internal/core/identity"
	"github.com/agenthands/neobatch/internal/core/model"
	"github.com/agenthands/neobatch/internal/driver"
	"github.com/agenthands/neobatch/internal/metrics"
)

// Sink accepts a stream of entities. Write may block while a flush it
// triggered is in flight; Flush drains whatever is buffered.
type Sink interface {
	Write(ctx context.Context, e model.Entity) error
	Flush(ctx context.Context) error
}

type Options struct {
	HighWaterMark    int
	IndexKey         string
	FlushTimeout     time.Duration
	RequeueOnFailure bool
}

func OptionsFromConfig(cfg config.WriterConfig) Options {
	return Options{
		HighWaterMark:    cfg.HighWaterMark,
		IndexKey:         cfg.IndexKey,
		FlushTimeout:     cfg.FlushTimeout.Duration,
		RequeueOnFailure: cfg.RequeueOnFailure,
	}
}

// CycleReport summarizes one flush cycle.
type CycleReport struct {
	ID         string        `json:"id"`
	Entities   int           `json:"entities"`
	Nodes      int           `json:"nodes"`
	Labels     int           `json:"labels"`
	Relations  int           `json:"relations"`
	Duplicates int           `json:"duplicates"`
	Skipped    int           `json:"skipped"`
	Requeued   int           `json:"requeued"`
	Dropped    int           `json:"dropped"`
	Phase      Phase         `json:"phase,omitempty"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}

type Status struct {
	State           string       `json:"state"`
	Buffered        int          `json:"buffered"`
	KnownIdentities int          `json:"known_identities"`
	Cycles          int64        `json:"cycles"`
	LastCycle       *CycleReport `json:"last_cycle,omitempty"`
}

// Writer buffers entities and commits them to the store in two phases,
// nodes then relations. The dedup index lives as long as the writer.
type Writer struct {
	Gateway       driver.Gateway
	Index         *identity.Index
	Compiler      *compiler.Compiler
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
	UUIDGenerator func() string

	opts Options

	// mu owns the queue and is held for the whole flush cycle, which is
	// what blocks producers while the store is busy.
	mu     sync.Mutex
	queue  []model.Entity
	closed bool

	state    atomic.Int32
	buffered atomic.Int64
	cycles   atomic.Int64

	statusMu  sync.RWMutex
	lastCycle *CycleReport
}

func NewWriter(gw driver.Gateway, index *identity.Index, opts Options, logger *zap.Logger, m *metrics.Metrics) *Writer {
	if opts.HighWaterMark < 1 {
		opts.HighWaterMark = config.DefaultHighWaterMark
	}
	if index == nil {
		index = identity.NewIndex()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}

	return &Writer{
		Gateway:  gw,
		Index:    index,
		Compiler: compiler.New(opts.IndexKey),
		Logger:   logger,
		Metrics:  m,
		UUIDGenerator: func() string {
			return uuid.New().String()
		},
		opts: opts,
	}
}

// Write enqueues e. When the queue reaches the high water mark the flush
// runs before Write returns, and its error is Write's error.
func (w *Writer) Write(ctx context.Context, e model.Entity) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	// A failed cycle requeued a full batch. Drain it before taking more.
	if len(w.queue) >= w.opts.HighWaterMark {
		if err := w.flushLocked(ctx); err != nil {
			w.Metrics.Rejected.Inc()
			return fmt.Errorf("%w: %w", ErrQueueFull, err)
		}
	}

	w.queue = append(w.queue, e)
	w.Metrics.EntitiesAccepted.Inc()
	w.updateBuffered()

	if len(w.queue) >= w.opts.HighWaterMark {
		return w.flushLocked(ctx)
	}
	return nil
}

// Flush commits everything buffered, even below the high water mark.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	return w.flushLocked(ctx)
}

// Close is the end-of-stream signal: it drains the queue, then releases
// the gateway and the identity store.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	flushErr := w.flushLocked(ctx)
	if n := len(w.queue); n > 0 {
		w.Logger.Warn("closing with unflushed entities", zap.Int("dropped", n))
		w.queue = nil
		w.updateBuffered()
	}
	w.closed = true

	var closeErr error
	if w.Gateway != nil {
		closeErr = w.Gateway.Close(ctx)
	}
	return errors.Join(flushErr, closeErr, w.Index.Close())
}

// CreateIndexes declares store indexes, normally once before streaming starts.
func (w *Writer) CreateIndexes(ctx context.Context, specs []model.IndexSpec) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if len(specs) == 0 {
		return nil
	}
	if err := w.Gateway.CreateIndexes(ctx, specs); err != nil {
		return err
	}
	w.Logger.Info("indexes created", zap.Int("count", len(specs)))
	return nil
}

func (w *Writer) State() State {
	return State(w.state.Load())
}

func (w *Writer) Status() Status {
	w.statusMu.RLock()
	defer w.statusMu.RUnlock()

	var last *CycleReport
	if w.lastCycle != nil {
		cp := *w.lastCycle
		last = &cp
	}
	return Status{
		State:           w.State().String(),
		Buffered:        int(w.buffered.Load()),
		KnownIdentities: w.Index.Len(),
		Cycles:          w.cycles.Load(),
		LastCycle:       last,
	}
}

// flushLocked runs cycles of at most HighWaterMark entities until the queue
// is empty or a cycle fails.
func (w *Writer) flushLocked(ctx context.Context) error {
	for len(w.queue) > 0 {
		if err := w.flushCycle(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) flushCycle(ctx context.Context) error {
	if w.opts.FlushTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.opts.FlushTimeout)
		defer cancel()
	}

	// Take the head of the queue; anything requeued on failure goes back in front.
	n := min(len(w.queue), w.opts.HighWaterMark)
	entities := w.queue[:n:n]
	w.queue = w.queue[n:]
	if len(w.queue) == 0 {
		w.queue = nil
	}
	w.updateBuffered()

	report := &CycleReport{ID: w.UUIDGenerator(), Entities: len(entities), StartedAt: time.Now()}
	logger := w.Logger.With(zap.String("cycle", report.ID))
	w.cycles.Add(1)

	w.setState(StateCompiling)
	phaseStart := time.Now()
	stage := w.Index.Stage()
	batch, err := w.Compiler.Compile(entities, stage)
	w.Metrics.ObservePhase(string(PhaseCompile), phaseStart)
	if err != nil {
		stage.Discard()
		restore := entities
		var cerr *compiler.CompileError
		if errors.As(err, &cerr) {
			restore = without(entities, cerr.Position)
		}
		return w.fail(logger, report, PhaseCompile, err, restore, len(entities))
	}

	report.Nodes = len(batch.Nodes)
	report.Labels = len(batch.Labels)
	report.Relations = len(batch.Relations)
	report.Duplicates = batch.Stats.Duplicates
	report.Skipped = batch.Stats.Skipped

	w.setState(StateWritingNodes)
	if !batch.NodeBatch.Empty() {
		phaseStart = time.Now()
		err := w.Gateway.WriteNodes(ctx, batch.NodeBatch)
		w.Metrics.ObservePhase(string(PhaseNodes), phaseStart)
		if err != nil {
			stage.Discard()
			return w.fail(logger, report, PhaseNodes, err, entities, len(entities))
		}
	}
	if err := stage.Commit(); err != nil {
		logger.Warn("failed to persist identity index", zap.Error(err))
	}
	w.Metrics.NodesCreated.Add(float64(len(batch.Nodes)))
	w.Metrics.LabelsAttached.Add(float64(len(batch.Labels)))
	w.Metrics.KnownIdentities.Set(float64(w.Index.Len()))

	w.setState(StateWritingRelations)
	if len(batch.Relations) > 0 {
		phaseStart = time.Now()
		err := w.Gateway.WriteRelations(ctx, batch.Relations)
		w.Metrics.ObservePhase(string(PhaseRelations), phaseStart)
		if err != nil {
			owed := relationsOf(entities)
			return w.fail(logger, report, PhaseRelations, err, owed, len(owed))
		}
	}
	w.Metrics.RelationsCreated.Add(float64(len(batch.Relations)))

	w.setState(StateDone)
	w.Metrics.Duplicates.Add(float64(batch.Stats.Duplicates))
	w.Metrics.Skipped.Add(float64(batch.Stats.Skipped))
	w.Metrics.Flushes.WithLabelValues("success", "").Inc()

	report.Duration = time.Since(report.StartedAt)
	w.recordCycle(report)
	logger.Info("flush complete",
		zap.Int("entities", report.Entities),
		zap.Int("nodes", report.Nodes),
		zap.Int("relations", report.Relations),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("skipped", report.Skipped),
		zap.Duration("duration", report.Duration))

	w.setState(StateIdle)
	return nil
}

// fail records a failed cycle. uncommitted is how many entities of the
// cycle never reached the store; those not restored are dropped.
func (w *Writer) fail(logger *zap.Logger, report *CycleReport, phase Phase, err error, restore []model.Entity, uncommitted int) error {
	w.setState(StateFailed)

	if w.opts.RequeueOnFailure && len(restore) > 0 {
		queue := make([]model.Entity, 0, len(restore)+len(w.queue))
		queue = append(queue, restore...)
		w.queue = append(queue, w.queue...)
		w.updateBuffered()
		report.Requeued = len(restore)
		w.Metrics.Requeued.Add(float64(len(restore)))
	}
	report.Dropped = uncommitted - report.Requeued
	report.Phase = phase
	report.Duration = time.Since(report.StartedAt)

	ferr := &FlushError{Cycle: report.ID, Phase: phase, Err: err}
	report.Error = ferr.Error()
	w.recordCycle(report)
	w.Metrics.Flushes.WithLabelValues("failure", string(phase)).Inc()

	logger.Error("flush failed",
		zap.String("phase", string(phase)),
		zap.Int("requeued", report.Requeued),
		zap.Int("dropped", report.Dropped),
		zap.Error(err))
	return ferr
}

func (w *Writer) setState(s State) {
	w.state.Store(int32(s))
}

func (w *Writer) updateBuffered() {
	w.buffered.Store(int64(len(w.queue)))
	w.Metrics.Buffered.Set(float64(len(w.queue)))
}

func (w *Writer) recordCycle(report *CycleReport) {
	w.statusMu.Lock()
	w.lastCycle = report
	w.statusMu.Unlock()
}

func without(entities []model.Entity, pos int) []model.Entity {
	out := make([]model.Entity, 0, len(entities))
	out = append(out, entities[:pos]...)
	return append(out, entities[pos+1:]...)
}

// relationsOf keeps the entities a failed relation phase still owes the store.
func relationsOf(entities []model.Entity) []model.Entity {
	var out []model.Entity
	for _, e := range entities {
		if _, ok := e.(*model.RelationEntity); ok {
			out = append(out, e)
		}
	}
	return out
}
