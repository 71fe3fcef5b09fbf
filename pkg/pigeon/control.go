package pigeon

import (
	"strings"
)

// ControlPortalID is the id of the portal every registry creates for itself.
const ControlPortalID = "pigeon"

// Control portal entry keys.
const (
	ControlEnable  = "enable"
	ControlDisable = "disable"
	ControlPortals = "portals"
)

// newControlPortal builds the registry's own portal:
//
//	pigeon.enable <id>...   enable the named portals
//	pigeon.disable <id>...  disable the named portals
//	pigeon.portals          list every portal as id:on or id:off
func (r *Registry) newControlPortal() *Portal {
	p, err := r.register(ControlPortalID)
	if err != nil {
		// the registry is empty at this point
		panic(err)
	}

	_ = p.AddBatch([]EntrySetup{
		{Key: ControlEnable, Handler: Custom{SetFunc: r.toggle(true)}, Manual: true},
		{Key: ControlDisable, Handler: Custom{SetFunc: r.toggle(false)}, Manual: true},
		{Key: ControlPortals, Handler: Custom{GetFunc: r.describePortals}, OnChange: true},
	})

	p.Ready()
	p.Enable()
	return p
}

func (r *Registry) toggle(enable bool) func(string) string {
	return func(request string) string {
		for _, id := range strings.Fields(request) {
			p, ok := r.readyPortal(id)
			if !ok {
				r.log.V(1).Info("control request names unknown or unready portal", "portal", id)
				continue
			}
			r.setEnabled(p, enable)
		}
		return ""
	}
}

func (r *Registry) setEnabled(p *Portal, enable bool) {
	if p.locker != nil {
		p.locker.Lock()
		defer p.locker.Unlock()
	}
	if enable {
		p.Enable()
	} else {
		p.Disable()
	}
	r.log.V(1).Info("portal toggled", "portal", p.id, "enabled", enable)
}

func (r *Registry) describePortals() string {
	ids := r.Portals()
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		p, ok := r.Portal(id)
		if !ok {
			continue
		}
		state := "off"
		if p.Enabled() {
			state = "on"
		}
		parts = append(parts, id+":"+state)
	}
	return strings.Join(parts, " ")
}
