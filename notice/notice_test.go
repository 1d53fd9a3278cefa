package notice

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelNotifier(t *testing.T) {
	ctx := context.Background()
	c := NewChannelNotifier(2)

	c.Notify(ctx, Notice{Level: LevelInfo, Message: "first"})
	c.Notify(ctx, Notice{Level: LevelWarning, Message: "second"})
	// buffer full, dropped
	c.Notify(ctx, Notice{Level: LevelError, Message: "third"})

	got := <-c.Notices()
	assert.Equal(t, "first", got.Message)
	got = <-c.Notices()
	assert.Equal(t, "second", got.Message)

	select {
	case n := <-c.Notices():
		t.Fatalf("unexpected notice: %v", n)
	default:
	}
}

func TestJSONWriterNotifier(t *testing.T) {
	var buf bytes.Buffer
	j := NewJSONWriterNotifier(&buf)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	j.Notify(context.Background(), Notice{Level: LevelError, Message: "update rejected", At: at})

	var got Notice
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, LevelError, got.Level)
	assert.Equal(t, "update rejected", got.Message)
	assert.True(t, got.At.Equal(at))
}

func TestMulti(t *testing.T) {
	ctx := context.Background()
	a := NewChannelNotifier(1)
	b := NewChannelNotifier(1)

	Multi{a, nil, b}.Notify(ctx, Notice{Message: "hello"})

	assert.Equal(t, "hello", (<-a.Notices()).Message)
	assert.Equal(t, "hello", (<-b.Notices()).Message)
}
