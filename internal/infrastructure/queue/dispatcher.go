package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/campusflow/gateway/internal/core/domain"
	"github.com/campusflow/gateway/internal/core/ports"
	"github.com/campusflow/gateway/internal/pkg/metrics"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

// Delivery is one consumed event plus the acknowledgement for its entry.
type Delivery struct {
	MessageID string
	Event     domain.UserRegistered
	Ack       func(ctx context.Context) error
}

// Dispatcher routes deliveries to a fixed set of workers using consistent
// hashing on the username, guaranteeing per-user event ordering.
type Dispatcher struct {
	workers []chan Delivery
	service ports.RegistrationService
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, service ports.RegistrationService, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan Delivery, numWorkers),
		service: service,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan Delivery, channelBuffer)
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

func (d *Dispatcher) Wait() { d.wg.Wait() }

// Enqueue hands a delivery to the worker responsible for its username. It
// blocks while that worker's buffer is full, until ctx is done.
func (d *Dispatcher) Enqueue(ctx context.Context, del Delivery) error {
	idx := d.shardIndex(del.Event.Username)
	select {
	case d.workers[idx] <- del:
		metrics.ConsumerQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnqueueBatch enqueues deliveries in order, preserving per-user ordering.
func (d *Dispatcher) EnqueueBatch(ctx context.Context, dels []Delivery) error {
	for _, del := range dels {
		if err := d.Enqueue(ctx, del); err != nil {
			return err
		}
	}
	return nil
}

// shardIndex maps a username deterministically to a worker index.
func (d *Dispatcher) shardIndex(username string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(username))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan Delivery) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case del, ok := <-ch:
			if !ok {
				return
			}
			metrics.ConsumerQueueDepth.WithLabelValues(strconv.Itoa(id)).Set(float64(len(ch)))
			d.handle(ctx, id, del)
		}
	}
}

// handle processes one delivery. Invalid events are acknowledged and dropped;
// any other failure leaves the entry pending for redelivery.
func (d *Dispatcher) handle(ctx context.Context, worker int, del Delivery) {
	err := d.service.Process(ctx, del.Event)
	switch {
	case err == nil:
		metrics.ConsumerMessagesTotal.WithLabelValues("ok").Inc()
	case errors.Is(err, domain.ErrValidation):
		metrics.ConsumerMessagesTotal.WithLabelValues("dropped").Inc()
		d.log.Warn().Err(err).
			Str("message_id", del.MessageID).
			Int("worker_id", worker).
			Msg("dropping invalid event")
	default:
		metrics.ConsumerMessagesTotal.WithLabelValues("error").Inc()
		d.log.Error().Err(err).
			Str("message_id", del.MessageID).
			Str("username", del.Event.Username).
			Int("worker_id", worker).
			Msg("event processing failed")
		return
	}

	if del.Ack == nil {
		return
	}
	if err := del.Ack(ctx); err != nil {
		d.log.Error().Err(err).Str("message_id", del.MessageID).Msg("ack failed")
	}
}
