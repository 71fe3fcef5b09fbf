package pigeon

import "sync"

// DefaultPoolSize is the number of message slots a Registry owns unless WithPoolSize says otherwise.
const DefaultPoolSize = 32

// SlotSize is the capacity of one message slot. Longer messages are truncated.
const SlotSize = LineSize

const noSlot = -1

// Pool is a fixed set of message slots lent to entries round-robin.
//
// Granting a slot always takes the slot under the cursor and advances the cursor, evicting
// whichever entry held it. The evicted entry keeps working but its Set/Update become no-ops
// until its portal is enabled again. The pool never grows.
type Pool struct {
	mu      sync.Mutex
	slots   []slot
	next    int
	metrics *Metrics
}

type slot struct {
	owner *Entry
	text  string
}

// NewPool creates a pool with the given capacity. Capacities below 1 are raised to 1.
func NewPool(capacity int) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{slots: make([]slot, capacity)}
}

// Cap returns the fixed number of slots.
func (p *Pool) Cap() int {
	return len(p.slots)
}

// InUse returns how many slots currently have an owner.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, s := range p.slots {
		if s.owner != nil {
			n++
		}
	}
	return n
}

// Owner returns the entry holding slot i, or nil.
func (p *Pool) Owner(i int) *Entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	if i < 0 || i >= len(p.slots) {
		return nil
	}
	return p.slots[i].owner
}

// Cursor returns the index the next grant will take.
func (p *Pool) Cursor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.next
}

// Grant lends e the slot under the cursor and returns the entry it evicted, if any.
// An entry that already holds a slot keeps it and nothing is evicted.
func (p *Pool) Grant(e *Entry) (evicted *Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e.slot != noSlot {
		return nil
	}

	i := p.next
	p.next = (p.next + 1) % len(p.slots)

	if old := p.slots[i].owner; old != nil {
		old.slot = noSlot
		evicted = old
	}
	p.slots[i] = slot{owner: e}
	e.slot = i

	p.metrics.slotGranted(evicted != nil)
	return evicted
}

// Holds reports whether e currently owns a slot.
func (p *Pool) Holds(e *Entry) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return e.slot != noSlot
}

// store copies text into e's slot. It returns the stored (possibly truncated) text and false
// when e holds no slot.
func (p *Pool) store(e *Entry, text string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e.slot == noSlot {
		return "", false
	}
	text = truncate(text, SlotSize)
	p.slots[e.slot].text = text
	return text, true
}

// load returns the text in e's slot, or "" when e holds no slot.
func (p *Pool) load(e *Entry) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e.slot == noSlot {
		return ""
	}
	return p.slots[e.slot].text
}
