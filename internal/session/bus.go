package session

import (
	"errors"
	"sync"
	"time"

	"github.com/xiaot623/gogo/researcher/internal/domain"
)

// DefaultSubscriberBuffer is the per-subscriber queue size used when none is configured.
const DefaultSubscriberBuffer = 64

var (
	// ErrSlowConsumer is reported to a subscriber whose buffer overflowed.
	ErrSlowConsumer = errors.New("subscriber buffer full")

	// ErrBusClosed is returned once the session has been evicted.
	ErrBusClosed = errors.New("event bus closed")
)

// Observer is notified about subscriber lifecycle changes.
type Observer interface {
	SubscriberAdded()
	SubscriberRemoved()
	SubscriberDropped()
}

// Bus is the ordered broadcast channel of one session.
//
// Publish applies each event to the table and fans it out under one lock, and
// Subscribe snapshots the table under the same lock, so a subscriber sees
// every event published after its snapshot exactly once.
type Bus struct {
	mu         sync.Mutex
	table      *Table
	subs       map[uint64]*Subscription
	nextID     uint64
	seq        uint64
	terminal   *domain.Event
	closed     bool
	bufferSize int
	observer   Observer
	now        func() time.Time
}

// NewBus creates a bus writing into table.
func NewBus(table *Table, bufferSize int, observer Observer) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultSubscriberBuffer
	}
	return &Bus{
		table:      table,
		subs:       make(map[uint64]*Subscription),
		bufferSize: bufferSize,
		observer:   observer,
		now:        time.Now,
	}
}

// Subscription is one live attachment to a bus.
type Subscription struct {
	id   uint64
	bus  *Bus
	ch   chan domain.Event
	open bool  // guarded by bus.mu
	err  error // guarded by bus.mu
	once sync.Once
}

// Events returns the stream of events published after the subscription's snapshot.
// The channel is closed after the terminal event, when the subscriber is dropped,
// or when the bus is closed; Err tells these apart.
func (s *Subscription) Events() <-chan domain.Event {
	return s.ch
}

// Err returns why the stream ended early, or nil.
func (s *Subscription) Err() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	return s.err
}

// Close detaches the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.unsubscribe(s)
	})
}

// Publish applies ev to the table, stamps it with the next sequence number and
// delivers it to every open subscription without blocking. A subscriber whose
// buffer is full is dropped. Terminal events close every stream.
func (b *Bus) Publish(ev domain.Event) (domain.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ev, ErrBusClosed
	}

	now := b.now()
	if err := b.table.Apply(ev, now); err != nil {
		return ev, err
	}

	b.seq++
	ev.Seq = b.seq
	ev.Ts = now.UnixMilli()

	for _, sub := range b.subs {
		if !sub.open {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.dropLocked(sub, ErrSlowConsumer)
		}
	}

	if ev.Type.IsTerminal() {
		terminal := ev
		b.terminal = &terminal
		for _, sub := range b.subs {
			if sub.open {
				sub.open = false
				close(sub.ch)
			}
		}
	}

	return ev, nil
}

// Subscribe atomically captures the table snapshot and attaches a new
// subscription. If the session already finished, the stream holds only the
// terminal event.
func (b *Bus) Subscribe() (domain.TableSnapshot, *Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return domain.TableSnapshot{}, nil, ErrBusClosed
	}

	snap := b.table.Snapshot()
	b.nextID++
	sub := &Subscription{
		id:   b.nextID,
		bus:  b,
		ch:   make(chan domain.Event, b.bufferSize),
		open: true,
	}
	if b.terminal != nil {
		sub.ch <- *b.terminal
		close(sub.ch)
		sub.open = false
	}
	b.subs[sub.id] = sub

	if b.observer != nil {
		b.observer.SubscriberAdded()
	}
	return snap, sub, nil
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub.id]; !ok {
		return
	}
	delete(b.subs, sub.id)
	if sub.open {
		sub.open = false
		close(sub.ch)
	}
	if b.observer != nil {
		b.observer.SubscriberRemoved()
	}
}

func (b *Bus) dropLocked(sub *Subscription, reason error) {
	sub.open = false
	sub.err = reason
	close(sub.ch)
	if b.observer != nil {
		b.observer.SubscriberDropped()
	}
}

// Close ends every stream with ErrBusClosed and rejects further use.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		if sub.open {
			sub.open = false
			sub.err = ErrBusClosed
			close(sub.ch)
		}
	}
}

// SubscriberCount returns the number of attached subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// lastSeq returns the sequence number of the last published event.
func (b *Bus) lastSeq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}
