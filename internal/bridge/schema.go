package bridge

import "fmt"

// Redis key pattern helpers
//
// All keys and Pub/Sub channels are namespaced by instance name so several robots can share
// one Redis server.
//
// Key pattern: pigeon:{instance}:{name}

// TelemetryChannel carries every decoded output line as a JSON record.
// Pattern: pigeon:{instance}:telemetry
func TelemetryChannel(instance string) string {
	return fmt.Sprintf("pigeon:%s:telemetry", instance)
}

// CommandsChannel carries raw input lines ("portal.key body") for the robot.
// Pattern: pigeon:{instance}:commands
func CommandsChannel(instance string) string {
	return fmt.Sprintf("pigeon:%s:commands", instance)
}

// LatestKey is a hash of channel -> most recent JSON record.
// Pattern: pigeon:{instance}:latest
func LatestKey(instance string) string {
	return fmt.Sprintf("pigeon:%s:latest", instance)
}

// HistoryKey is a capped stream of JSON records in arrival order.
// Pattern: pigeon:{instance}:history
func HistoryKey(instance string) string {
	return fmt.Sprintf("pigeon:%s:history", instance)
}
