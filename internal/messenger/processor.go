package messenger

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tuvshee555/Auto-reception/internal/logging"
	"github.com/Tuvshee555/Auto-reception/internal/metrics"
)

type ProcessorConfig struct {
	Workers   int
	QueueSize int
	// EventTimeout bounds one HandleEvent call.
	EventTimeout time.Duration
}

// Processor runs accepted events on a fixed worker pool whose lifetime is
// the server context, not the delivering request. Events from one sender
// may run on different workers; the controller serializes them per sender.
type Processor struct {
	svc     Service
	cfg     ProcessorConfig
	queue   chan InboundEvent
	log     zerolog.Logger
	metrics *metrics.Metrics

	mu   sync.RWMutex
	done <-chan struct{}
	wg   sync.WaitGroup
}

func NewProcessor(svc Service, cfg ProcessorConfig, log zerolog.Logger, m *metrics.Metrics) *Processor {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = 45 * time.Second
	}
	return &Processor{
		svc:     svc,
		cfg:     cfg,
		queue:   make(chan InboundEvent, cfg.QueueSize),
		log:     logging.Component(log, "processor"),
		metrics: m,
	}
}

// Start launches the workers. They stop when ctx is cancelled; events still
// queued at that point are abandoned.
func (p *Processor) Start(ctx context.Context) {
	p.mu.Lock()
	p.done = ctx.Done()
	p.mu.Unlock()

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i+1)
	}
	p.log.Info().Int("workers", p.cfg.Workers).Int("queue", p.cfg.QueueSize).Msg("processor started")
}

// Wait blocks until every worker has returned.
func (p *Processor) Wait() {
	p.wg.Wait()
}

// Submit enqueues ev without blocking. It reports false when the event was
// dropped because the queue is full or the processor is not running.
func (p *Processor) Submit(ev InboundEvent) bool {
	p.mu.RLock()
	done := p.done
	p.mu.RUnlock()

	if done == nil {
		p.drop(ev, "not started")
		return false
	}
	select {
	case <-done:
		p.drop(ev, "stopped")
		return false
	default:
	}

	select {
	case p.queue <- ev:
		return true
	default:
		p.drop(ev, "queue full")
		return false
	}
}

func (p *Processor) drop(ev InboundEvent, reason string) {
	p.metrics.QueueDropped.Inc()
	p.log.Warn().
		Str("psid", ev.SenderID).
		Str("mid", ev.MessageID).
		Str("reason", reason).
		Msg("event dropped")
}

func (p *Processor) run(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			p.log.Debug().Int("worker", id).Msg("worker stopping")
			return
		case ev := <-p.queue:
			p.handle(ctx, ev)
		}
	}
}

func (p *Processor) handle(ctx context.Context, ev InboundEvent) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.EventTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			p.metrics.Events.WithLabelValues("panic").Inc()
			p.log.Error().Interface("panic", r).Str("psid", ev.SenderID).Msg("event handler panicked")
		}
	}()

	outcome, err := p.svc.HandleEvent(ctx, ev)
	if err != nil {
		p.metrics.Events.WithLabelValues("error").Inc()
		p.log.Error().Err(err).Str("psid", ev.SenderID).Str("mid", ev.MessageID).Msg("event failed")
		return
	}
	p.metrics.Events.WithLabelValues(string(outcome)).Inc()
}
