package msglog

import (
	"context"
	"path/filepath"
	"testing"

	"callout/internal/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "messages.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, source.Message{ID: "1", Channel: "alerts", Text: "in SPY 6/20 420C @ 1.25"}))
	require.NoError(t, s.Append(ctx, source.Message{ID: "2", Channel: "alerts", Text: "trimming NVDA @ 50%"}))
	require.NoError(t, s.Append(ctx, source.Message{ID: "3", Channel: "vip", Text: "all out of TSLA"}))

	entries, err := s.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// 新的在前。
	assert.Equal(t, "all out of TSLA", entries[0].Text)

	alerts, err := s.Recent(ctx, "alerts", 10)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	for _, e := range alerts {
		assert.Equal(t, "alerts", e.Channel)
	}
}

func TestAppendDuplicateIgnored(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msg := source.Message{ID: "1", Channel: "alerts", Text: "in SPY 6/20 420C @ 1.25"}
	require.NoError(t, s.Append(ctx, msg))
	require.NoError(t, s.Append(ctx, msg))

	entries, err := s.Recent(ctx, "alerts", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// 同文本出现在别的频道算新消息。
	other := source.Message{ID: "9", Channel: "vip", Text: msg.Text}
	require.NoError(t, s.Append(ctx, other))
	all, err := s.Recent(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRecentLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.Append(ctx, source.Message{Channel: "alerts", Text: text}))
	}
	entries, err := s.Recent(ctx, "alerts", 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, "d", entries[0].Text)
}
