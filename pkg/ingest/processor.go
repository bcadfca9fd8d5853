package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"chatsync/pkg/events"
	"chatsync/pkg/logger"
	"chatsync/pkg/store"
	"chatsync/pkg/telemetry"
)

// HandlerFunc reconciles one decoded event inside a write transaction.
type HandlerFunc func(s *store.Session, ev events.Event) error

type ProcessorConfig struct {
	// QueueSize bounds frames waiting for the worker.
	QueueSize int
	Metrics   *telemetry.Metrics
}

// Processor decodes realtime frames and applies them to the replica, one
// transaction per frame, in arrival order.
type Processor struct {
	db       *store.DB
	in       chan []byte
	stop     chan struct{}
	wg       sync.WaitGroup
	running  int32
	paused   int32
	handlers map[events.EventType]HandlerFunc
	metrics  *telemetry.Metrics

	processed atomic.Uint64
	failed    atomic.Uint64
}

func NewProcessor(db *store.DB, pc ProcessorConfig) *Processor {
	if pc.QueueSize <= 0 {
		pc.QueueSize = 1024
	}
	return &Processor{
		db:       db,
		in:       make(chan []byte, pc.QueueSize),
		stop:     make(chan struct{}),
		handlers: make(map[events.EventType]HandlerFunc),
		metrics:  pc.Metrics,
	}
}

// RegisterHandler registers fn for an event type, replacing any previous one.
func (p *Processor) RegisterHandler(t events.EventType, fn HandlerFunc) {
	p.handlers[t] = fn
}

// Pause stops processing new frames until Resume is called. Frames keep queueing.
func (p *Processor) Pause() {
	atomic.StoreInt32(&p.paused, 1)
}

func (p *Processor) Resume() {
	atomic.StoreInt32(&p.paused, 0)
}

// Start launches the worker.
func (p *Processor) Start() {
	if !atomic.CompareAndSwapInt32(&p.running, 0, 1) {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.workerLoop()
	}()
	logger.Info("ingest_processor_started", "handlers", len(p.handlers))
}

// Stop applies the frames already queued and waits for the worker, or for ctx.
func (p *Processor) Stop(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&p.running, 1, 0) {
		return
	}
	close(p.stop)
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("ingest_processor_stopped", "processed", p.processed.Load(), "failed", p.failed.Load())
	case <-ctx.Done():
		logger.Warn("ingest_processor_stop_timeout")
	}
}

// Enqueue hands a raw frame to the worker. It blocks while the queue is full.
func (p *Processor) Enqueue(ctx context.Context, frame []byte) error {
	select {
	case <-p.stop:
		return ErrStopped
	default:
	}
	select {
	case p.in <- frame:
		return nil
	case <-p.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

var ErrStopped = errors.New("ingest processor stopped")

func (p *Processor) workerLoop() {
	for {
		if atomic.LoadInt32(&p.paused) == 1 {
			select {
			case <-p.stop:
				p.drain()
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}
		select {
		case frame := <-p.in:
			p.Process(context.Background(), frame)
		case <-p.stop:
			p.drain()
			return
		}
	}
}

func (p *Processor) drain() {
	for {
		select {
		case frame := <-p.in:
			p.Process(context.Background(), frame)
		default:
			return
		}
	}
}

// Process decodes and applies one frame synchronously. Undecodable frames
// are logged and returned as errors; unsupported events and events for
// entities the replica does not hold are skipped.
func (p *Processor) Process(ctx context.Context, frame []byte) error {
	tr := p.metrics.Track("ingest_frame")
	defer tr.Finish()

	ev, err := events.Decode(frame)
	if err != nil {
		var derr *events.DecodeError
		typ := "unknown"
		if errors.As(err, &derr) && derr.Type != "" {
			typ = string(derr.Type)
		}
		logger.Warn("event_decode_failed", "type", typ, "error", err)
		p.metrics.ObserveEvent(typ, "decode_error")
		p.failed.Add(1)
		return err
	}
	tr.Mark("decode")
	return p.apply(ctx, ev, tr)
}

// Apply reconciles an already decoded event, e.g. one returned by a REST
// response, with the same rules as Process.
func (p *Processor) Apply(ctx context.Context, ev events.Event) error {
	tr := p.metrics.Track("ingest_event")
	defer tr.Finish()
	return p.apply(ctx, ev, tr)
}

func (p *Processor) apply(ctx context.Context, ev events.Event, tr *telemetry.Trace) error {
	typ := string(ev.EventType())

	if events.IsUnsupported(ev) {
		logger.Debug("event_unsupported", "type", typ)
		p.metrics.ObserveEvent(typ, "unsupported")
		return nil
	}
	fn, ok := p.handlers[ev.EventType()]
	if !ok || fn == nil {
		logger.Debug("no_ingest_handler", "type", typ)
		p.metrics.ObserveEvent(typ, "unhandled")
		return nil
	}

	err := p.db.Write(ctx, func(s *store.Session) error { return fn(s, ev) })
	tr.Mark("apply")
	switch {
	case err == nil:
		p.processed.Add(1)
		p.metrics.ObserveEvent(typ, "ok")
		return nil
	case isSkippable(err):
		logger.Debug("event_skipped", "type", typ, "reason", err)
		p.metrics.ObserveEvent(typ, "skipped")
		return nil
	default:
		logger.Error("ingest_handler_error", "type", typ, "error", err)
		p.metrics.ObserveEvent(typ, "error")
		p.failed.Add(1)
		return err
	}
}

// isSkippable reports errors meaning the event refers to entities outside
// the replica, such as a channel that is not watched locally.
func isSkippable(err error) bool {
	return errors.Is(err, store.ErrChannelDoesNotExist) ||
		errors.Is(err, store.ErrMessageDoesNotExist)
}

// Stats returns the number of applied and failed frames.
func (p *Processor) Stats() (processed, failed uint64) {
	return p.processed.Load(), p.failed.Load()
}
