package bridge

import (
	"context"
	"sync"

	"github.com/go-logr/logr"
	"github.com/redis/go-redis/v9"
)

// Subscription is an active Pub/Sub subscription delivering decoded messages.
// Caller must call Close() when done.
type Subscription[T any] struct {
	events <-chan T
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of decoded messages.
// The channel is closed when the subscription is closed or the context is cancelled.
func (s *Subscription[T]) Events() <-chan T {
	return s.events
}

// Errors returns the channel of decode failures. The subscription continues after errors;
// the offending message is skipped.
func (s *Subscription[T]) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription[T]) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// subscribe starts a subscription on channel. It returns once Redis has confirmed the
// subscription, so nothing published afterwards is missed.
//
// Events are delivered on a buffered channel (size 64). Redis Pub/Sub is at-most-once: a
// subscriber that falls behind loses messages.
func subscribe[T any](ctx context.Context, rdb *redis.Client, channel string, decode func(string) (T, error)) (*Subscription[T], error) {
	pubsub := rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	eventsChan := make(chan T, 64)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				v, err := decode(msg.Payload)
				if err != nil {
					select {
					case errorsChan <- err:
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- v:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription[T]{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// LogErrors logs every error from errs until the channel closes.
func LogErrors(log logr.Logger, errs <-chan error) {
	for err := range errs {
		log.V(1).Info("skipping subscription message", "reason", err.Error())
	}
}
