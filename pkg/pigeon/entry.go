package pigeon

// BatchTerminator ends an AddBatch list early, mirroring the sentinel-terminated setup tables
// subsystems declare.
const BatchTerminator = "~"

// EntrySetup describes one variable to register on a portal.
type EntrySetup struct {
	Key     string
	Handler Handler

	// Stream includes the entry in the portal's flush row.
	Stream bool
	// OnChange emits a line every time the entry is set or updated.
	OnChange bool
	// Manual stops the dispatcher from republishing the entry after a remote set.
	Manual bool
}

// Entry is a registered variable. Entries are created by Portal.Add and live as long as the
// registry.
type Entry struct {
	key      string
	handler  Handler
	stream   bool
	onchange bool
	manual   bool

	portal *Portal
	slot   int // guarded by the registry pool
}

func newEntry(p *Portal, setup EntrySetup) *Entry {
	return &Entry{
		key:      setup.Key,
		handler:  setup.Handler,
		stream:   setup.Stream,
		onchange: setup.OnChange,
		manual:   setup.Manual,
		portal:   p,
		slot:     noSlot,
	}
}

// Key returns the entry key.
func (e *Entry) Key() string { return e.key }

// Path returns "portal.key".
func (e *Entry) Path() string { return e.portal.id + "." + e.key }

// Stream reports whether the entry was registered as a stream entry.
func (e *Entry) Stream() bool { return e.stream }

// OnChange reports whether sets and updates emit a line.
func (e *Entry) OnChange() bool { return e.onchange }

// Manual reports whether remote sets skip the automatic republish.
func (e *Entry) Manual() bool { return e.manual }
