//go:build integration

package bridge

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/dyluth/pigeon/internal/telemetry"
	"github.com/dyluth/pigeon/pkg/pigeon"
	"github.com/go-logr/logr/testr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Integration tests require a running Docker daemon
// Run with: go test -tags=integration -v ./internal/bridge

// setupRedis starts a Redis container for testing.
func setupRedis(t *testing.T) string {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start Redis container")

	t.Cleanup(func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s", host, port.Port())
}

// TestBridge_RoundTrip relays robot output to Redis and a console command back to the robot.
func TestBridge_RoundTrip(t *testing.T) {
	redisURL := setupRedis(t)
	instance := "it-" + uuid.NewString()[:8]

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	client, err := NewClientFromURL(redisURL, instance)
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Ping(ctx))

	telemetrySub, err := client.SubscribeTelemetry(ctx)
	require.NoError(t, err)
	defer telemetrySub.Close()

	commandSub, err := client.SubscribeCommands(ctx)
	require.NoError(t, err)
	defer commandSub.Close()

	robotOut, robotOutW := io.Pipe()
	robotIn := &captureWriter{}
	relay := NewRelay(pigeon.NewReader(robotOut), robotIn,
		NewFanout(telemetry.NewDecoder(), nil, client), testr.New(t), nil)

	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx, commandSub.Events()) }()

	_, err = io.WriteString(robotOutW, pigeon.FormatLine(1200, "flywheel", "target", "2400.0")+"\n")
	require.NoError(t, err)

	select {
	case rec := <-telemetrySub.Events():
		assert.Equal(t, "flywheel.target", rec.Channel)
		assert.Equal(t, "2400.0", rec.Message)
	case <-ctx.Done():
		t.Fatal("timeout waiting for telemetry")
	}

	latest, err := client.Latest(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 1)

	_, err = client.SendCommand(ctx, "flywheel.target 2500")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(robotIn.Lines()) == 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "flywheel.target 2500", robotIn.Lines()[0])

	require.NoError(t, robotOutW.Close())
	require.NoError(t, <-done)
}
