package output

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/use-agent/shelfscan/models"
)

const defaultStream = "shelfscan"

// RedisSink appends one stream entry per record.
type RedisSink struct {
	client *redis.Client
}

// NewRedisSink creates a sink for the Redis server at addr.
func NewRedisSink(addr string, db int) *RedisSink {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	return &RedisSink{client: client}
}

// StreamName joins the base stream with the target's prefix and folder,
// e.g. "shelfscan:products:2024-weekly".
func StreamName(t Target) string {
	parts := []string{t.Destination}
	if parts[0] == "" {
		parts[0] = defaultStream
	}
	for _, p := range []string{t.Prefix, t.Folder} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ":")
}

// Write XADDs every record as a JSON "record" field and returns the
// stream name. Records are pipelined in one round trip.
func (s *RedisSink) Write(ctx context.Context, agg models.AggregateResult, t Target) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	stream := StreamName(t)
	if len(agg.Records) == 0 {
		return stream, nil
	}

	pipe := s.client.Pipeline()
	for _, rec := range agg.Records {
		data, err := json.Marshal(rec)
		if err != nil {
			return "", models.NewScrapeError(models.ErrCodeOutput, "failed to encode record", err)
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: stream,
			Values: map[string]interface{}{
				"record": string(data),
			},
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return "", models.NewScrapeError(models.ErrCodeOutput, "failed to publish records to redis", err)
	}
	return stream, nil
}

// Ping checks that the server is reachable.
func (s *RedisSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
