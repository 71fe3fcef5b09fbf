// Package sim provides simulated robot subsystems that publish through a pigeon registry, so
// the wire protocol can be exercised without hardware.
package sim

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/dyluth/pigeon/pkg/pigeon"
)

// Flywheel model constants.
const (
	MaxRPM       = 3000.0
	TimeConstant = 250 * time.Millisecond
	DefaultGain  = 0.8
	// ReadyError is the band around the target within which the flywheel reports ready.
	ReadyError = 1.0
)

// Flywheel states reported by the "state" entry.
const (
	StateIdle   = "idle"
	StateActive = "active"
	StateReady  = "ready"
)

var streamKeys = []string{"velocity", "error", "action", "ticks"}

// Flywheel is a first-order flywheel under proportional control with feed-forward.
//
// Remote edits arrive on the registry dispatcher while Step runs on the caller's goroutine;
// both hold the same mutex.
type Flywheel struct {
	mu     sync.Mutex
	portal *pigeon.Portal

	target   float32
	gain     float32
	velocity float32
	err      float32
	action   float32
	ticks    uint64
	active   bool
}

// NewFlywheel registers a flywheel portal with id on reg and marks it ready. The portal still
// has to be enabled, locally or with "pigeon.enable <id>".
func NewFlywheel(reg *pigeon.Registry, id string) (*Flywheel, error) {
	f := &Flywheel{gain: DefaultGain}

	portal, err := reg.CreatePortal(id, pigeon.WithLocker(&f.mu))
	if err != nil {
		return nil, err
	}
	f.portal = portal

	err = portal.AddBatch([]pigeon.EntrySetup{
		{Key: "target", Handler: pigeon.Custom{GetFunc: f.getTarget, SetFunc: f.setTarget}, OnChange: true},
		{Key: "gain", Handler: pigeon.Float{Target: &f.gain}, OnChange: true},
		{Key: "velocity", Handler: pigeon.Float{Target: &f.velocity}, Stream: true},
		{Key: "error", Handler: pigeon.Float{Target: &f.err}, Stream: true},
		{Key: "action", Handler: pigeon.Float{Target: &f.action}, Stream: true},
		{Key: "ticks", Handler: pigeon.Ulong{Target: &f.ticks}, Stream: true},
		{Key: "active", Handler: pigeon.Bool{Target: &f.active}, OnChange: true},
		{Key: "state", Handler: pigeon.Custom{GetFunc: f.state}, OnChange: true},
		{Key: "reset", Handler: pigeon.Custom{SetFunc: f.reset}, Manual: true},
		{Key: pigeon.BatchTerminator},
	})
	if err != nil {
		return nil, fmt.Errorf("register flywheel entries: %w", err)
	}

	if err := portal.SetStreamKeys(strings.Join(streamKeys, " ")); err != nil {
		return nil, err
	}
	portal.Ready()
	return f, nil
}

// Portal returns the flywheel's portal.
func (f *Flywheel) Portal() *pigeon.Portal {
	return f.portal
}

// Step advances the model by dt, republishes the changing entries and flushes the stream row.
func (f *Flywheel) Step(dt time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	wasReady := f.state() == StateReady
	if f.active {
		f.err = f.target - f.velocity
		action := f.target/MaxRPM + f.gain*f.err/MaxRPM
		f.action = float32(math.Max(0, math.Min(1, float64(action))))
	} else {
		f.err = 0
		f.action = 0
	}

	alpha := float32(dt.Seconds() / TimeConstant.Seconds())
	if alpha > 1 {
		alpha = 1
	}
	f.velocity += (f.action*MaxRPM - f.velocity) * alpha
	f.ticks++

	if wasReady != (f.state() == StateReady) {
		f.portal.Update("state")
	}
	for _, key := range streamKeys {
		f.portal.Update(key)
	}
	f.portal.Flush()
}

// Run steps the model every period until ctx ends.
func (f *Flywheel) Run(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.Step(period)
		}
	}
}

// Velocity returns the current modelled velocity.
func (f *Flywheel) Velocity() float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.velocity
}

// State returns idle, active or ready.
func (f *Flywheel) State() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state()
}

func (f *Flywheel) getTarget() string {
	return pigeon.Float{Target: &f.target}.Get()
}

// setTarget mirrors the firmware: any target above zero activates the flywheel.
func (f *Flywheel) setTarget(request string) string {
	pigeon.Float{Target: &f.target}.Set(request)
	if f.target < 0 {
		f.target = 0
	}

	active := f.target > 0
	if active != f.active {
		f.active = active
		f.portal.Update("active")
	}
	f.portal.Update("state")
	return ""
}

func (f *Flywheel) reset(string) string {
	f.velocity = 0
	f.err = 0
	f.action = 0
	f.ticks = 0
	return "ok"
}

func (f *Flywheel) state() string {
	switch {
	case !f.active:
		return StateIdle
	case math.Abs(float64(f.target-f.velocity)) < ReadyError:
		return StateReady
	default:
		return StateActive
	}
}
