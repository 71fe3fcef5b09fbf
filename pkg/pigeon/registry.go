package pigeon

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// DefaultMessageDelay is the pause the dispatcher takes after each input line.
const DefaultMessageDelay = 40 * time.Millisecond

// Registry owns the portals, the message slot pool and the dispatcher.
//
// The dispatcher starts once MarkReady has been called and every registered portal is ready,
// whichever happens last. It is started at most once.
type Registry struct {
	in      LineReader
	out     LineWriter
	clock   Clock
	log     logr.Logger
	metrics *Metrics
	pool    *Pool
	delay   time.Duration
	spawn   func(func())
	ctx     context.Context
	done    chan struct{}

	mu      sync.Mutex
	portals map[string]*Portal
	ready   bool
	started bool

	control *Portal
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log logr.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// WithMetrics records registry activity. A nil *Metrics records nothing.
func WithMetrics(m *Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithPoolSize sets the number of message slots.
func WithPoolSize(n int) Option {
	return func(r *Registry) { r.pool = NewPool(n) }
}

// WithMessageDelay sets the dispatcher's pause between input lines.
func WithMessageDelay(d time.Duration) Option {
	return func(r *Registry) { r.delay = d }
}

// WithSpawner replaces the goroutine launch used for the dispatcher.
func WithSpawner(spawn func(func())) Option {
	return func(r *Registry) { r.spawn = spawn }
}

// WithContext bounds the dispatcher's lifetime. The default never ends.
func WithContext(ctx context.Context) Option {
	return func(r *Registry) { r.ctx = ctx }
}

// New creates a registry reading requests from in and writing lines to out, stamped by clock.
// The control portal is created, readied and enabled before New returns.
func New(in LineReader, out LineWriter, clock Clock, opts ...Option) *Registry {
	r := &Registry{
		in:      in,
		out:     out,
		clock:   clock,
		log:     logr.Discard(),
		pool:    NewPool(DefaultPoolSize),
		delay:   DefaultMessageDelay,
		spawn:   func(f func()) { go f() },
		ctx:     context.Background(),
		done:    make(chan struct{}),
		portals: make(map[string]*Portal),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.pool.metrics = r.metrics

	r.control = r.newControlPortal()
	return r
}

// CreatePortal registers a new portal. The portal gets a "keys" entry for its stream order.
// It fails with ErrDuplicateID when id is taken.
func (r *Registry) CreatePortal(id string, opts ...PortalOption) (*Portal, error) {
	p, err := r.register(id, opts...)
	if err != nil {
		return nil, err
	}
	if err := p.Add(EntrySetup{Key: StreamKeysKey, Handler: StreamKeys{Portal: p}, OnChange: true}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Registry) register(id string, opts ...PortalOption) (*Portal, error) {
	if err := validateName("portal id", id); err != nil {
		return nil, err
	}
	if strings.Contains(id, ".") {
		return nil, fmt.Errorf("invalid portal id '%s': '.' separates portal from key", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.portals[id]; exists {
		return nil, fmt.Errorf("create portal '%s': %w", id, ErrDuplicateID)
	}
	p := newPortal(r, id, opts...)
	r.portals[id] = p
	return p, nil
}

// Portal looks up a portal by id.
func (r *Registry) Portal(id string) (*Portal, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.portals[id]
	return p, ok
}

// readyPortal looks up a portal that has finished setup. Portals still adding entries are
// invisible to runtime requests.
func (r *Registry) readyPortal(id string) (*Portal, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.portals[id]
	if !ok || !p.ready {
		return nil, false
	}
	return p, true
}

// Portals returns the registered portal ids in sorted order.
func (r *Registry) Portals() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.portals))
	for id := range r.portals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Control returns the control portal.
func (r *Registry) Control() *Portal { return r.control }

// Pool returns the message slot pool.
func (r *Registry) Pool() *Pool { return r.pool }

// MarkReady declares portal construction complete and starts the dispatcher if every portal
// is ready.
func (r *Registry) MarkReady() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ready = true
	r.startIfReadyLocked()
}

// Ready reports whether the registry and all of its portals are ready.
func (r *Registry) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready && r.portalsReadyLocked()
}

// Running reports whether the dispatcher has been started.
func (r *Registry) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Done is closed when the dispatcher returns, which only happens when the input is exhausted
// or the registry context ends.
func (r *Registry) Done() <-chan struct{} { return r.done }

func (r *Registry) portalReady(p *Portal) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p.ready = true
	r.startIfReadyLocked()
}

func (r *Registry) portalsReadyLocked() bool {
	for _, p := range r.portals {
		if !p.ready {
			return false
		}
	}
	return true
}

func (r *Registry) startIfReadyLocked() {
	if r.started || !r.ready || !r.portalsReadyLocked() {
		return
	}
	r.started = true
	r.log.Info("dispatcher starting", "portals", len(r.portals), "slots", r.pool.Cap())
	r.spawn(func() { r.run(r.ctx) })
}

// emit formats and writes one line. Write failures are logged and otherwise ignored.
func (r *Registry) emit(portalID, key, message string) {
	line := FormatLine(r.clock(), portalID, key, message)
	if err := r.out.WriteLine(line); err != nil {
		r.metrics.writeFailed()
		r.log.Error(err, "failed to write line", "path", joinPath(portalID, key))
		return
	}
	r.metrics.lineWritten()
}
