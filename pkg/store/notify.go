package store

import (
	"sync"
)

type EntityKind string

const (
	EntityUser        EntityKind = "user"
	EntityCurrentUser EntityKind = "current_user"
	EntityChannel     EntityKind = "channel"
	EntityMember      EntityKind = "member"
	EntityRead        EntityKind = "read"
	EntityMessage     EntityKind = "message"
	EntityReaction    EntityKind = "reaction"
	EntityAttachment  EntityKind = "attachment"
)

type ChangeKind string

const (
	ChangeUpsert ChangeKind = "upsert"
	ChangeDelete ChangeKind = "delete"
)

// Change is one entity touched by a committed transaction.
type Change struct {
	Entity EntityKind
	Kind   ChangeKind
	ID     string
}

// ChangeSet lists the entities of one committed transaction. Seq increases
// by one per commit.
type ChangeSet struct {
	Seq     uint64
	Changes []Change
}

// Has reports whether the set touched the given entity.
func (c ChangeSet) Has(entity EntityKind, id string) bool {
	for _, ch := range c.Changes {
		if ch.Entity == entity && ch.ID == id {
			return true
		}
	}
	return false
}

// changeLog records changes in first-touch order; the last kind wins.
type changeLog struct {
	order []Change
	index map[Change]int
}

func (l *changeLog) record(entity EntityKind, id string, kind ChangeKind) {
	if l.index == nil {
		l.index = make(map[Change]int)
	}
	k := Change{Entity: entity, ID: id}
	if i, ok := l.index[k]; ok {
		l.order[i].Kind = kind
		return
	}
	l.index[k] = len(l.order)
	l.order = append(l.order, Change{Entity: entity, Kind: kind, ID: id})
}

func (l *changeLog) list() []Change {
	return l.order
}

type observer struct {
	id int
	fn func(ChangeSet)
}

// notifier delivers change sets on its own goroutine so observers never run
// on the writer and always see commit order.
type notifier struct {
	mu        sync.Mutex
	cond      *sync.Cond
	queue     []ChangeSet
	observers []observer
	nextID    int
	closed    bool
	done      chan struct{}
}

func newNotifier() *notifier {
	n := &notifier{done: make(chan struct{})}
	n.cond = sync.NewCond(&n.mu)
	return n
}

func (n *notifier) subscribe(fn func(ChangeSet)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	id := n.nextID
	n.observers = append(n.observers, observer{id: id, fn: fn})
	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			for i, o := range n.observers {
				if o.id == id {
					n.observers = append(n.observers[:i:i], n.observers[i+1:]...)
					return
				}
			}
		})
	}
}

func (n *notifier) publish(cs ChangeSet) {
	n.mu.Lock()
	if !n.closed {
		n.queue = append(n.queue, cs)
		n.cond.Signal()
	}
	n.mu.Unlock()
}

func (n *notifier) run() {
	defer close(n.done)
	for {
		n.mu.Lock()
		for len(n.queue) == 0 && !n.closed {
			n.cond.Wait()
		}
		if len(n.queue) == 0 {
			n.mu.Unlock()
			return
		}
		cs := n.queue[0]
		n.queue = n.queue[1:]
		obs := append([]observer(nil), n.observers...)
		n.mu.Unlock()

		for _, o := range obs {
			o.fn(cs)
		}
	}
}

// close drains queued change sets and stops the goroutine.
func (n *notifier) close() {
	n.mu.Lock()
	n.closed = true
	n.cond.Broadcast()
	n.mu.Unlock()
	<-n.done
}
