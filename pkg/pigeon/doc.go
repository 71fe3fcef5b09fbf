// Package pigeon is the telemetry and remote-configuration registry used by the robot's
// control software.
//
// # Overview
//
// Subsystems (drive, flywheel, odometry, mechanisms) expose their variables through Portals.
// A Portal is a named namespace of Entries; each Entry pairs a key with a Handler that formats
// the variable for output and parses operator edits. All portals share one line-oriented
// channel: output lines carry live values, input lines carry edits.
//
// # Lifecycle
//
// Setup happens in two phases. Portals are created and entries added, then each portal is
// marked ready, which freezes its entries. Once the application calls Registry.MarkReady and
// every portal is ready, the registry starts its single dispatcher goroutine. The order of the
// ready calls does not matter.
//
// At runtime the owning subsystem calls Update (push the handler's current value), Set (push
// an arbitrary text) and Flush (push one row of all stream entries) from its own goroutine,
// typically once per control tick.
//
// # Wire format
//
// Output:
//
//	[00012345|flywheel.target ] 2400.0
//	[00012365|flywheel] 2391.5 8.5 1042
//
// Input:
//
//	flywheel.target 2400
//	flywheel.keys velocity error
//	pigeon.enable flywheel reckoner
//	pigeon.disable reckoner
//
// A request with no body is a set with empty text, not a read.
//
// # Message slots
//
// Every serviced entry needs a slot from the registry's fixed pool. Enabling a portal lends its
// entries slots round-robin; when the pool is exhausted the oldest grant is evicted and that
// entry falls silent until its portal is enabled again. The pool never grows.
//
// # Usage Example
//
//	reg := pigeon.New(pigeon.NewReader(port), pigeon.NewWriter(port), pigeon.SinceClock(time.Now()))
//
//	var target float32
//	portal, err := reg.CreatePortal("flywheel", pigeon.WithLocker(&mu))
//	if err != nil {
//		log.Fatal(err)
//	}
//	portal.Add(pigeon.EntrySetup{Key: "target", Handler: pigeon.Float{Target: &target}, OnChange: true})
//	portal.Ready()
//	portal.Enable()
//	reg.MarkReady()
//
// # Concurrency
//
// Entry values are not locked by the registry. Portals created WithLocker share a mutex with
// their subsystem: the dispatcher holds it while applying a remote edit. Everything else
// (Update, Set, Flush) runs on the caller's goroutine and is the caller's to serialize.
package pigeon
