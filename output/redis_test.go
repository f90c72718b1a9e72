package output

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/shelfscan/models"
)

func TestRedisSink(t *testing.T) {
	ctx := context.Background()
	sink := NewRedisSink("localhost:6379", 0)
	defer sink.Close()

	if err := sink.Ping(ctx); err != nil {
		t.Skip("Redis is not available, skipping test")
	}

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 0})
	defer client.Close()

	target := Target{
		Destination: "shelfscan_test",
		Prefix:      fmt.Sprintf("run%d", time.Now().UnixNano()),
	}
	stream, err := sink.Write(ctx, sampleAggregate(), target)
	require.NoError(t, err)
	assert.Equal(t, StreamName(target), stream)
	defer client.Del(ctx, stream)

	msgs, err := client.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	var first models.ProductRecord
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["record"].(string)), &first))
	assert.Equal(t, "Bananas, loose", first.ProductName)
	assert.Equal(t, "fruit", first.Category)
}

func TestRedisSink_EmptyAggregateSkipsRoundTrip(t *testing.T) {
	// No server needed: nothing is sent.
	sink := NewRedisSink("127.0.0.1:1", 0)
	defer sink.Close()

	stream, err := sink.Write(context.Background(), models.Merge(), Target{Prefix: "empty"})
	require.NoError(t, err)
	assert.Equal(t, "shelfscan:empty", stream)
}
