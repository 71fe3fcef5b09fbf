package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dyluth/pigeon/internal/telemetry"
	"github.com/dyluth/pigeon/pkg/pigeon"
	"github.com/redis/go-redis/v9"
)

// DefaultHistoryLen caps the history stream.
const DefaultHistoryLen = 10000

// Client provides instance-scoped Redis operations for telemetry and commands.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb        *redis.Client
	instance   string
	historyLen int64
}

// NewClient creates a new client for the specified instance.
// Returns an error if instance is empty.
func NewClient(redisOpts *redis.Options, instance string) (*Client, error) {
	if instance == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:        redis.NewClient(redisOpts),
		instance:   instance,
		historyLen: DefaultHistoryLen,
	}, nil
}

// NewClientFromURL parses a redis:// URL and creates a client for instance.
func NewClientFromURL(url, instance string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewClient(opts, instance)
}

// Instance returns the instance name the client is scoped to.
func (c *Client) Instance() string {
	return c.instance
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Publish stores rec as the latest value of its channel, appends it to the history stream and
// publishes it to pigeon:{instance}:telemetry.
func (c *Client) Publish(ctx context.Context, rec telemetry.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := c.rdb.HSet(ctx, LatestKey(c.instance), rec.Channel, data).Err(); err != nil {
		return fmt.Errorf("failed to write latest value: %w", err)
	}

	if err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: HistoryKey(c.instance),
		MaxLen: c.historyLen,
		Values: map[string]interface{}{"record": data},
	}).Err(); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}

	if err := c.rdb.Publish(ctx, TelemetryChannel(c.instance), data).Err(); err != nil {
		return fmt.Errorf("failed to publish record: %w", err)
	}

	return nil
}

// Latest returns the most recent record of every channel, sorted by channel.
func (c *Client) Latest(ctx context.Context) ([]telemetry.Record, error) {
	hash, err := c.rdb.HGetAll(ctx, LatestKey(c.instance)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read latest values: %w", err)
	}

	records := make([]telemetry.Record, 0, len(hash))
	for channel, data := range hash {
		var rec telemetry.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode latest value of %s: %w", channel, err)
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Channel < records[j].Channel })

	return records, nil
}

// History returns up to count of the most recent records, oldest first.
func (c *Client) History(ctx context.Context, count int64) ([]telemetry.Record, error) {
	msgs, err := c.rdb.XRevRangeN(ctx, HistoryKey(c.instance), "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	records := make([]telemetry.Record, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		data, ok := msgs[i].Values["record"].(string)
		if !ok {
			continue
		}
		var rec telemetry.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode history entry %s: %w", msgs[i].ID, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// SendCommand publishes an input line for the robot. Blank lines are rejected.
// It returns how many bridges received it.
func (c *Client) SendCommand(ctx context.Context, line string) (int64, error) {
	if _, err := pigeon.ParseRequest(line); err != nil {
		return 0, err
	}
	n, err := c.rdb.Publish(ctx, CommandsChannel(c.instance), line).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to publish command: %w", err)
	}
	return n, nil
}

// SubscribeTelemetry subscribes to decoded records published by Publish.
func (c *Client) SubscribeTelemetry(ctx context.Context) (*Subscription[telemetry.Record], error) {
	sub, err := subscribe(ctx, c.rdb, TelemetryChannel(c.instance), func(payload string) (telemetry.Record, error) {
		var rec telemetry.Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return rec, fmt.Errorf("failed to unmarshal telemetry record: %w", err)
		}
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to telemetry: %w", err)
	}
	return sub, nil
}

// SubscribeCommands subscribes to input lines sent with SendCommand.
func (c *Client) SubscribeCommands(ctx context.Context) (*Subscription[string], error) {
	sub, err := subscribe(ctx, c.rdb, CommandsChannel(c.instance), func(payload string) (string, error) {
		if _, err := pigeon.ParseRequest(payload); err != nil {
			return "", fmt.Errorf("rejected command %q: %w", payload, err)
		}
		return payload, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to commands: %w", err)
	}
	return sub, nil
}
