// Package bus fans published messages out to keyed and global subscribers.
package bus

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

type Message[K comparable, M any] struct {
	Key     K
	Message M
}

type Publisher[M any] func(ctx context.Context, msg M)

type options struct {
	buffer int
}

type Option func(o *options)

// WithBuffer sets the capacity of every subscriber channel.
func WithBuffer(n int) Option {
	return func(o *options) {
		o.buffer = n
	}
}

// subscribers maps each subscriber channel to its done channel.
type subscribers[K comparable, M any] map[chan Message[K, M]]<-chan struct{}

// Bus delivers messages in publish order. A slow subscriber blocks
// delivery until its context is done.
type Bus[K comparable, M any] struct {
	log   *zap.Logger
	opts  options
	ready chan struct{}

	ch         chan Message[K, M]
	keySubs    *xsync.MapOf[K, subscribers[K, M]]
	globalSubs *xsync.MapOf[chan Message[K, M], <-chan struct{}]
}

func New[K comparable, M any](log *zap.Logger, opts ...Option) *Bus[K, M] {
	o := options{buffer: 16}
	for _, opt := range opts {
		opt(&o)
	}
	return &Bus[K, M]{
		log:        log,
		opts:       o,
		ready:      make(chan struct{}),
		ch:         make(chan Message[K, M]),
		keySubs:    xsync.NewMapOf[K, subscribers[K, M]](),
		globalSubs: xsync.NewMapOf[chan Message[K, M], <-chan struct{}](),
	}
}

// Start delivers messages until ctx is done.
func (b *Bus[K, M]) Start(ctx context.Context) error {
	close(b.ready)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-b.ch:
			b.deliver(ctx, msg)
		}
	}
}

func (b *Bus[K, M]) Ready() <-chan struct{} {
	return b.ready
}

func (b *Bus[K, M]) Publish(ctx context.Context, key K, msg M) {
	select {
	case <-ctx.Done():
	case b.ch <- Message[K, M]{Key: key, Message: msg}:
	}
}

func (b *Bus[K, M]) CreatePublisher(key K) Publisher[M] {
	return func(ctx context.Context, msg M) {
		b.Publish(ctx, key, msg)
	}
}

func (b *Bus[K, M]) deliver(ctx context.Context, msg Message[K, M]) {
	b.globalSubs.Range(func(sub chan Message[K, M], done <-chan struct{}) bool {
		return b.send(ctx, sub, done, msg)
	})
	subs, ok := b.keySubs.Load(msg.Key)
	if !ok {
		return
	}
	for sub, done := range subs {
		if !b.send(ctx, sub, done, msg) {
			return
		}
	}
}

// send returns false only when the bus itself is stopping.
func (b *Bus[K, M]) send(ctx context.Context, sub chan Message[K, M], done <-chan struct{}, msg Message[K, M]) bool {
	select {
	case sub <- msg:
		return true
	default:
	}
	b.log.Debug("Subscriber is lagging", zap.Any("key", msg.Key))
	select {
	case <-ctx.Done():
		return false
	case <-done:
		return true
	case sub <- msg:
		return true
	}
}

// Subscribe returns a channel receiving messages for the given keys, or
// all messages when no key is given. The subscription ends when ctx is
// done; the channel is not closed, so readers must watch ctx as well.
func (b *Bus[K, M]) Subscribe(ctx context.Context, keys ...K) <-chan Message[K, M] {
	ch := make(chan Message[K, M], b.opts.buffer)
	done := ctx.Done()
	if len(keys) == 0 {
		b.globalSubs.Store(ch, done)
		go func() {
			<-done
			b.globalSubs.Delete(ch)
		}()
		return ch
	}
	for _, k := range keys {
		b.keySubs.Compute(k, func(val subscribers[K, M], ok bool) (subscribers[K, M], bool) {
			next := make(subscribers[K, M], len(val)+1)
			for sub, d := range val {
				next[sub] = d
			}
			next[ch] = done
			return next, false
		})
	}
	go func() {
		<-done
		for _, k := range keys {
			b.keySubs.Compute(k, func(val subscribers[K, M], ok bool) (subscribers[K, M], bool) {
				next := make(subscribers[K, M], len(val))
				for sub, d := range val {
					if sub != ch {
						next[sub] = d
					}
				}
				return next, len(next) == 0
			})
		}
	}()
	return ch
}
