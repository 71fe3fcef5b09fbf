package pigeon

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"
)

// StreamKeysKey is the entry every user portal gets for reading and replacing its stream order.
const StreamKeysKey = "keys"

// wireDelimiters frame the clock and path of an output line.
const wireDelimiters = "[|]"

// Portal is a named group of entries.
//
// Entries are added during setup, after which Ready freezes the portal. At runtime the owning
// subsystem calls Update/Set/Flush from its own goroutine; the registry dispatcher calls entry
// handlers on remote requests. Portal methods do not lock entry values; see WithLocker.
type Portal struct {
	registry *Registry
	id       string
	locker   sync.Locker

	ready    bool // guarded by registry.mu once the portal is registered
	enabled  atomic.Bool
	onchange atomic.Bool

	entries map[string]*Entry
	order   []*Entry
	stream  atomic.Pointer[[]*Entry]
}

// PortalOption configures a portal at creation.
type PortalOption func(*Portal)

// WithLocker makes the dispatcher hold l while it runs a remote request against this portal,
// and while the control portal enables or disables it. Subsystems that guard their own tick
// with the same mutex never race with remote edits.
func WithLocker(l sync.Locker) PortalOption {
	return func(p *Portal) { p.locker = l }
}

func newPortal(r *Registry, id string, opts ...PortalOption) *Portal {
	p := &Portal{
		registry: r,
		id:       id,
		entries:  make(map[string]*Entry),
	}
	p.onchange.Store(true)
	p.stream.Store(&[]*Entry{})
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID returns the portal id.
func (p *Portal) ID() string { return p.id }

// IsReady reports whether Ready has been called.
func (p *Portal) IsReady() bool {
	p.registry.mu.Lock()
	defer p.registry.mu.Unlock()
	return p.ready
}

// Enabled reports whether the portal is currently serviced.
func (p *Portal) Enabled() bool { return p.enabled.Load() }

// SetOnChange switches on-change emission for the whole portal. Entries still need their own
// OnChange flag. The default is on.
func (p *Portal) SetOnChange(on bool) { p.onchange.Store(on) }

// Add registers an entry. It fails with ErrAlreadyReady once the portal is ready and with
// ErrDuplicateKey when the key is taken.
func (p *Portal) Add(setup EntrySetup) error {
	if p.IsReady() {
		return fmt.Errorf("add '%s' to portal '%s': %w", setup.Key, p.id, ErrAlreadyReady)
	}
	if err := validateName("entry key", setup.Key); err != nil {
		return err
	}
	if _, exists := p.entries[setup.Key]; exists {
		return fmt.Errorf("add '%s' to portal '%s': %w", setup.Key, p.id, ErrDuplicateKey)
	}

	e := newEntry(p, setup)
	p.entries[e.key] = e
	p.order = append(p.order, e)

	if e.stream {
		current := *p.stream.Load()
		next := make([]*Entry, len(current), len(current)+1)
		copy(next, current)
		next = append(next, e)
		p.stream.Store(&next)
	}

	return nil
}

// AddBatch adds setups in order until it meets a setup keyed BatchTerminator. Failed adds do
// not stop the batch; their errors are joined.
func (p *Portal) AddBatch(setups []EntrySetup) error {
	var errs []error
	for _, setup := range setups {
		if setup.Key == BatchTerminator {
			break
		}
		if err := p.Add(setup); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ready freezes the portal's entries and lets the registry re-check whether the dispatcher
// can start. Calling it twice is harmless.
func (p *Portal) Ready() {
	p.registry.portalReady(p)
}

// Enable starts servicing the portal and lends each entry a message slot. Entries that still
// hold a slot keep it; the others take the next slot round-robin, evicting its holder.
func (p *Portal) Enable() {
	p.enabled.Store(true)
	for _, e := range p.order {
		if evicted := p.registry.pool.Grant(e); evicted != nil {
			p.registry.log.V(1).Info("message slot evicted", "evicted", evicted.Path(), "by", e.Path())
		}
	}
}

// Disable stops servicing the portal. Slots are not reclaimed.
func (p *Portal) Disable() {
	p.enabled.Store(false)
}

// Entry looks up an entry by key.
func (p *Portal) Entry(key string) (*Entry, bool) {
	e, ok := p.entries[key]
	return e, ok
}

// Entries returns the entries in registration order.
func (p *Portal) Entries() []*Entry {
	out := make([]*Entry, len(p.order))
	copy(out, p.order)
	return out
}

// Set stores text in the entry's slot and emits it when on-change is active. It does nothing
// when the portal is disabled, the key is unknown or the entry holds no slot.
func (p *Portal) Set(key, text string) {
	if !p.Enabled() {
		return
	}
	e, ok := p.entries[key]
	if !ok {
		return
	}
	stored, ok := p.registry.pool.store(e, text)
	if !ok {
		return
	}
	p.emitChange(e, stored)
}

// Update reads the entry's current value through its handler and then behaves like Set. An
// empty reading means the handler has no data; the slot keeps its text and nothing is emitted.
func (p *Portal) Update(key string) {
	if !p.Enabled() {
		return
	}
	e, ok := p.entries[key]
	if !ok || e.handler == nil || !p.registry.pool.Holds(e) {
		return
	}
	text := e.handler.Get()
	if text == "" {
		return
	}
	stored, ok := p.registry.pool.store(e, text)
	if !ok {
		return
	}
	p.emitChange(e, stored)
}

// Flush emits one line for the portal carrying the slot text of every stream entry, joined
// by single spaces in stream order. With no stream entries the line has an empty message.
func (p *Portal) Flush() {
	if !p.Enabled() {
		return
	}
	stream := *p.stream.Load()
	if len(stream) == 0 {
		p.registry.emit(p.id, "", "")
		return
	}

	parts := make([]string, len(stream))
	for i, e := range stream {
		parts[i] = p.registry.pool.load(e)
	}
	p.registry.emit(p.id, "", strings.Join(parts, " "))
}

// StreamKeys returns the stream order as space-separated keys.
func (p *Portal) StreamKeys() string {
	stream := *p.stream.Load()
	keys := make([]string, len(stream))
	for i, e := range stream {
		keys[i] = e.key
	}
	return strings.Join(keys, " ")
}

// SetStreamKeys replaces the stream order with the space-separated keys in text. If any key
// is unknown the old order stays and a *StreamKeyError is returned.
func (p *Portal) SetStreamKeys(text string) error {
	keys := strings.Fields(text)
	next := make([]*Entry, 0, len(keys))
	for _, key := range keys {
		e, ok := p.entries[key]
		if !ok {
			return &StreamKeyError{Portal: p.id, Key: key}
		}
		next = append(next, e)
	}
	p.stream.Store(&next)
	return nil
}

func (p *Portal) emitChange(e *Entry, message string) {
	if p.onchange.Load() && e.onchange {
		p.registry.emit(p.id, e.key, message)
	}
}

// StreamKeys exposes a portal's stream order as an entry.
type StreamKeys struct{ Portal *Portal }

var _ Handler = StreamKeys{}

func (h StreamKeys) Get() string {
	return h.Portal.StreamKeys()
}

// Set replaces the order. A rejected order is ignored like any malformed request.
func (h StreamKeys) Set(request string) string {
	_ = h.Portal.SetStreamKeys(request)
	return ""
}

func validateName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%s cannot be empty", kind)
	}
	if name == BatchTerminator || strings.IndexFunc(name, unicode.IsSpace) >= 0 ||
		strings.ContainsAny(name, wireDelimiters) {
		return fmt.Errorf("invalid %s '%s'", kind, name)
	}
	return nil
}
