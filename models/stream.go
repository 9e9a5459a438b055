package models

import (
	"sync"

	"github.com/google/uuid"
)

// Publisher fans data out to all registered subscribers. It is used to
// notify external collaborators (notifications, analytics) of finalized
// transactions without coupling them to the lifecycle components.
type Publisher[T any] struct {
	mux         sync.RWMutex
	subscribers map[uuid.UUID]Subscriber[T]
}

func NewPublisher[T any]() *Publisher[T] {
	return &Publisher[T]{
		subscribers: make(map[uuid.UUID]Subscriber[T]),
	}
}

// Publish delivers data to every subscriber. A subscriber failure is
// reported on its own error channel and never affects other subscribers
// or the publishing component.
func (p *Publisher[T]) Publish(data T) {
	p.mux.RLock()
	defer p.mux.RUnlock()

	for _, s := range p.subscribers {
		s.Notify(data)
	}
}

func (p *Publisher[T]) Subscribe(s Subscriber[T]) {
	p.mux.Lock()
	defer p.mux.Unlock()

	p.subscribers[s.ID()] = s
}

func (p *Publisher[T]) Unsubscribe(s Subscriber[T]) {
	p.mux.Lock()
	defer p.mux.Unlock()

	delete(p.subscribers, s.ID())
}

type Subscriber[T any] interface {
	ID() uuid.UUID
	Notify(data T)
	Error() <-chan error
}

// Subscription is a callback-backed subscriber.
type Subscription[T any] struct {
	err      chan error
	callback func(data T) error
	uuid     uuid.UUID
}

func NewSubscription[T any](callback func(T) error) *Subscription[T] {
	return &Subscription[T]{
		callback: callback,
		uuid:     uuid.New(),
		err:      make(chan error, 1),
	}
}

func (b *Subscription[T]) Notify(data T) {
	if err := b.callback(data); err != nil {
		select {
		case b.err <- err:
		default:
		}
	}
}

func (b *Subscription[T]) ID() uuid.UUID {
	return b.uuid
}

func (b *Subscription[T]) Error() <-chan error {
	return b.err
}
