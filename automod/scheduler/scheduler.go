// Parallel, per-key ordered processing of gateway events.
package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/guildwarden/warden/automod/event"

	"github.com/prometheus/client_golang/prometheus"
)

// Key used for events which carry no guild, channel or user.
const GlobalKey = "global"

// KeyFor picks the ordering key of an event: its guild, else its channel, else its user.
func KeyFor(evt event.Event) string {
	if id, ok := evt.GuildID().Get(); ok {
		return "guild/" + id.String()
	}
	if id, ok := evt.ChannelID().Get(); ok {
		return "channel/" + id.String()
	}
	if id, ok := evt.UserID().Get(); ok {
		return "user/" + id.String()
	}
	return GlobalKey
}

// Scheduler runs work on a fixed number of workers. Events with the same key are processed one at a time, in the order they were added.
type Scheduler struct {
	maxConcurrency int

	do func(context.Context, event.Event) error

	feeder chan *task
	out    chan struct{}

	lk     sync.Mutex
	active map[string][]*task

	ident string

	itemsAdded     prometheus.Counter
	itemsProcessed prometheus.Counter
	itemsActive    prometheus.Counter
	workersActive  prometheus.Gauge

	log *slog.Logger
}

type task struct {
	key     string
	val     event.Event
	control string
}

func NewScheduler(maxC int, ident string, logger *slog.Logger, do func(context.Context, event.Event) error) *Scheduler {
	if maxC < 1 {
		maxC = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Scheduler{
		maxConcurrency: maxC,

		do: do,

		feeder: make(chan *task),
		active: make(map[string][]*task),
		out:    make(chan struct{}),

		ident: ident,

		itemsAdded:     workItemsAdded.WithLabelValues(ident),
		itemsProcessed: workItemsProcessed.WithLabelValues(ident),
		itemsActive:    workItemsActive.WithLabelValues(ident),
		workersActive:  workersActive.WithLabelValues(ident),

		log: logger.With("system", "scheduler", "pool", ident),
	}

	for i := 0; i < maxC; i++ {
		go p.worker()
	}

	p.workersActive.Set(float64(maxC))

	return p
}

// Shutdown waits for every added event to be processed, then stops the workers. AddWork must not be called afterwards.
func (p *Scheduler) Shutdown() {
	p.log.Info("shutting down scheduler")

	for i := 0; i < p.maxConcurrency; i++ {
		p.feeder <- &task{
			control: "stop",
		}
	}

	close(p.feeder)

	for i := 0; i < p.maxConcurrency; i++ {
		<-p.out
	}

	p.workersActive.Set(0)
	p.log.Info("scheduler shutdown complete")
}

// AddWork queues an event under KeyFor(evt).
func (p *Scheduler) AddWork(ctx context.Context, evt event.Event) error {
	return p.AddKeyedWork(ctx, KeyFor(evt), evt)
}

// AddKeyedWork queues an event behind any in-flight work for the same key. When no work for the key is in flight it blocks until a worker is free, or ctx is done.
func (p *Scheduler) AddKeyedWork(ctx context.Context, key string, evt event.Event) error {
	p.itemsAdded.Inc()
	t := &task{
		key: key,
		val: evt,
	}
	p.lk.Lock()

	a, ok := p.active[key]
	if ok {
		p.active[key] = append(a, t)
		p.lk.Unlock()
		return nil
	}

	p.active[key] = []*task{}
	p.lk.Unlock()

	select {
	case p.feeder <- t:
		return nil
	case <-ctx.Done():
		p.lk.Lock()
		// hand any work queued behind this task to a worker, or drop the key
		rem := p.active[key]
		if len(rem) == 0 {
			delete(p.active, key)
			p.lk.Unlock()
			return ctx.Err()
		}
		next := rem[0]
		p.active[key] = rem[1:]
		p.lk.Unlock()
		p.feeder <- next
		return ctx.Err()
	}
}

func (p *Scheduler) worker() {
	for work := range p.feeder {
		for work != nil {
			if work.control == "stop" {
				p.out <- struct{}{}
				return
			}

			p.itemsActive.Inc()
			if err := p.do(context.Background(), work.val); err != nil {
				p.log.Error("event handler failed", "kind", work.val.Kind(), "key", work.key, "err", err)
			}
			p.itemsProcessed.Inc()

			p.lk.Lock()
			rem, ok := p.active[work.key]
			if !ok {
				p.log.Error("should always have an 'active' entry if a worker is processing a job")
			}

			if len(rem) == 0 {
				delete(p.active, work.key)
				work = nil
			} else {
				work = rem[0]
				p.active[work.key] = rem[1:]
			}
			p.lk.Unlock()
		}
	}
}

// Active returns the number of keys with work in flight.
func (p *Scheduler) Active() int {
	p.lk.Lock()
	defer p.lk.Unlock()
	return len(p.active)
}
