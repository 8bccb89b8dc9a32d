package fanout

import (
	"context"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
)

// Deliverer sends a formatted payload to webhooks.
type Deliverer interface {
	Deliver(ctx context.Context, ev Event, payload Payload) error
}

// Options configures a Dispatcher.
type Options struct {
	Workers      int
	QueueSize    int
	EmailTimeout time.Duration
	// TaskTimeout bounds the whole fan-out for one event.
	TaskTimeout time.Duration
	// BaseURL returns the public base URL used in notification links.
	BaseURL func() string
	// SiteName signs notification mail. Empty disables the signature.
	SiteName func() string
}

// Dispatcher runs fan-out tasks on a bounded worker pool. Dispatch never
// blocks; events beyond the queue capacity are dropped.
type Dispatcher struct {
	queue    chan Event
	workers  int
	webhooks Deliverer
	mailer   Mailer
	opts     Options

	wg sync.WaitGroup
}

// NewDispatcher constructs a Dispatcher. Nil webhooks or mailer disable that task.
func NewDispatcher(webhooks Deliverer, mailer Mailer, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.EmailTimeout <= 0 {
		opts.EmailTimeout = 15 * time.Second
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = time.Minute
	}
	if opts.BaseURL == nil {
		opts.BaseURL = func() string { return "" }
	}
	if opts.SiteName == nil {
		opts.SiteName = func() string { return "" }
	}
	return &Dispatcher{
		queue:    make(chan Event, opts.QueueSize),
		workers:  opts.Workers,
		webhooks: webhooks,
		mailer:   mailer,
		opts:     opts,
	}
}

// Start launches the workers. They drain the queue and exit once ctx is done.
func (d *Dispatcher) Start(ctx context.Context) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run(ctx)
	}
	log.Infof("fanout dispatcher started (workers=%d queue=%d)", d.workers, cap(d.queue))
}

// Wait blocks until every worker has exited.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

// Dispatch enqueues ev and reports whether it was accepted.
func (d *Dispatcher) Dispatch(ev Event) bool {
	if d == nil {
		return false
	}
	if ev.Name == "" {
		ev.Name = EventFormSubmitted
	}
	select {
	case d.queue <- ev:
		return true
	default:
		log.WithFields(log.Fields{
			"form_id":       ev.FormID,
			"submission_id": ev.SubmissionID,
		}).Warn("fanout: queue full, event dropped")
		return false
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		case ev := <-d.queue:
			d.handle(ctx, ev)
		}
	}
}

// drain processes whatever is queued at shutdown with a fresh deadline.
func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.handle(context.Background(), ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) handle(parent context.Context, ev Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), d.opts.TaskTimeout)
	defer cancel()

	payload := FormatPayload(ev)
	entry := log.WithFields(log.Fields{"form_id": ev.FormID, "submission_id": ev.SubmissionID})

	var g errgroup.Group
	if d.webhooks != nil {
		g.Go(guarded(entry, "webhook", func() {
			if errDeliver := d.webhooks.Deliver(ctx, ev, payload); errDeliver != nil {
				entry.WithError(errDeliver).Warn("fanout: webhook delivery error")
			}
		}))
	}
	if d.mailer != nil && ev.Notify.Enabled && strings.TrimSpace(ev.Notify.Email) != "" {
		g.Go(guarded(entry, "notification", func() {
			mailCtx, mailCancel := context.WithTimeout(ctx, d.opts.EmailTimeout)
			defer mailCancel()
			msg := BuildNotification(ev, payload, d.opts.BaseURL())
			if site := d.opts.SiteName(); site != "" {
				msg.Body += "\n-- \n" + site + "\n"
			}
			if errSend := d.mailer.Send(mailCtx, msg); errSend != nil {
				entry.WithError(errSend).Warn("fanout: notification send error")
			}
		}))
	}
	_ = g.Wait()
}

// guarded turns a task into an errgroup func that logs panics.
func guarded(entry *log.Entry, task string, fn func()) func() error {
	return func() error {
		defer func() {
			if r := recover(); r != nil {
				entry.WithField("panic", r).Errorf("fanout: %s task panicked", task)
			}
		}()
		fn()
		return nil
	}
}
