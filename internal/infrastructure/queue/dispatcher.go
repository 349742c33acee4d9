package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/account-service/internal/core/ports"
	"github.com/99minutos/account-service/internal/metrics"
)

const (
	defaultWorkers     = 4
	defaultSendTimeout = 15 * time.Second
	channelBuffer      = 256
)

// Dispatcher routes outbound emails to a fixed set of workers using consistent
// hashing on the recipient, so mail to one address is delivered in order.
// Enqueue never blocks: when a worker channel is full the message is dropped.
type Dispatcher struct {
	workers     []chan ports.EmailMessage
	sender      ports.Notifier
	sendTimeout time.Duration
	log         zerolog.Logger
	wg          sync.WaitGroup
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithSendTimeout bounds a single delivery attempt.
func WithSendTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.sendTimeout = d
		}
	}
}

// WithBuffer sets the per-worker channel capacity.
func WithBuffer(n int) Option {
	return func(disp *Dispatcher) {
		if n > 0 {
			for i := range disp.workers {
				disp.workers[i] = make(chan ports.EmailMessage, n)
			}
		}
	}
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, sender ports.Notifier, log zerolog.Logger, opts ...Option) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:     make([]chan ports.EmailMessage, numWorkers),
		sender:      sender,
		sendTimeout: defaultSendTimeout,
		log:         log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.EmailMessage, channelBuffer)
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled;
// Wait blocks until they have.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Enqueue hands msg to the worker responsible for its recipient.
func (d *Dispatcher) Enqueue(msg ports.EmailMessage) {
	idx := d.shardIndex(msg.To)
	select {
	case d.workers[idx] <- msg:
		metrics.EmailQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		metrics.EmailsTotal.WithLabelValues(msg.Tag, "dropped").Inc()
		d.log.Warn().
			Str("tag", msg.Tag).
			Int("worker_id", idx).
			Msg("email queue full, message dropped")
	}
}

// shardIndex maps a recipient deterministically to a worker index.
func (d *Dispatcher) shardIndex(recipient string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(recipient)))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.EmailMessage) {
	defer d.wg.Done()
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			metrics.EmailQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
			d.deliver(ctx, id, msg)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, worker int, msg ports.EmailMessage) {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	start := time.Now()
	err := d.sender.Send(sendCtx, msg)
	metrics.EmailSendDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.EmailsTotal.WithLabelValues(msg.Tag, "failed").Inc()
		d.log.Error().Err(err).
			Str("tag", msg.Tag).
			Int("worker_id", worker).
			Msg("email delivery failed")
		return
	}
	metrics.EmailsTotal.WithLabelValues(msg.Tag, "sent").Inc()
	d.log.Debug().Str("tag", msg.Tag).Int("worker_id", worker).Msg("email sent")
}
