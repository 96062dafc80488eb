package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHistoryStore(t *testing.T) *HistoryStore {
	t.Helper()
	return NewHistoryStore(newTestFileStore(t))
}

func strptr(s string) *string { return &s }

func TestHistoryAppendLoadRoundTrip(t *testing.T) {
	h := newTestHistoryStore(t)

	_, found, err := h.Load("token", 1)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, h.Append("token", 1, Turn{User: "hi", Bot: "hello"}, strptr("Greeting")))

	transcript, found, err := h.Load("token", 1)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []Turn{{User: "hi", Bot: "hello"}}, transcript.History)
	require.NotNil(t, transcript.Title)
	assert.Equal(t, "Greeting", *transcript.Title)
}

func TestHistoryTitleSetAtMostOnce(t *testing.T) {
	h := newTestHistoryStore(t)

	require.NoError(t, h.Append("token", 1, Turn{User: "a", Bot: "b"}, strptr("first")))
	require.NoError(t, h.Append("token", 1, Turn{User: "c", Bot: "d"}, strptr("second")))

	transcript, _, err := h.Load("token", 1)
	require.NoError(t, err)
	require.NotNil(t, transcript.Title)
	assert.Equal(t, "first", *transcript.Title)
}

func TestHistoryTitleRetryAfterNilAppend(t *testing.T) {
	h := newTestHistoryStore(t)

	require.NoError(t, h.Append("token", 1, Turn{User: "a", Bot: "b"}, nil))

	transcript, _, err := h.Load("token", 1)
	require.NoError(t, err)
	assert.Nil(t, transcript.Title)

	require.NoError(t, h.Append("token", 1, Turn{User: "c", Bot: "d"}, strptr("late title")))

	transcript, _, err = h.Load("token", 1)
	require.NoError(t, err)
	require.NotNil(t, transcript.Title)
	assert.Equal(t, "late title", *transcript.Title)
}

func TestHistoryPreservesOrder(t *testing.T) {
	h := newTestHistoryStore(t)

	const n = 5
	for i := 0; i < n; i++ {
		turn := Turn{User: fmt.Sprintf("user %d", i), Bot: fmt.Sprintf("bot %d", i)}
		require.NoError(t, h.Append("token", 0, turn, nil))
	}

	transcript, _, err := h.Load("token", 0)
	require.NoError(t, err)
	require.Len(t, transcript.History, n)
	for i, turn := range transcript.History {
		assert.Equal(t, fmt.Sprintf("user %d", i), turn.User)
		assert.Equal(t, fmt.Sprintf("bot %d", i), turn.Bot)
	}
}

func TestHistorySectionsAreIndependent(t *testing.T) {
	h := newTestHistoryStore(t)

	require.NoError(t, h.Append("token", 1, Turn{User: "one", Bot: "r1"}, nil))
	require.NoError(t, h.Append("token", 2, Turn{User: "two", Bot: "r2"}, nil))
	require.NoError(t, h.Append("other", 1, Turn{User: "three", Bot: "r3"}, nil))

	transcript, _, err := h.Load("token", 1)
	require.NoError(t, err)
	require.Len(t, transcript.History, 1)
	assert.Equal(t, "one", transcript.History[0].User)
}

func TestHistoryDeleteIdempotent(t *testing.T) {
	h := newTestHistoryStore(t)

	existed, err := h.Delete("token", 7)
	require.NoError(t, err)
	assert.False(t, existed)

	require.NoError(t, h.Append("token", 7, Turn{User: "a", Bot: "b"}, nil))

	existed, err = h.Delete("token", 7)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = h.Delete("token", 7)
	require.NoError(t, err)
	assert.False(t, existed)

	_, found, err := h.Load("token", 7)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestHistoryConcurrentAppendsLoseNothing(t *testing.T) {
	h := newTestHistoryStore(t)

	const m = 32
	var wg sync.WaitGroup
	errs := make([]error, m)
	for i := 0; i < m; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			turn := Turn{User: fmt.Sprintf("user %d", i), Bot: fmt.Sprintf("bot %d", i)}
			errs[i] = h.Append("token", 3, turn, nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "append %d failed", i)
	}

	transcript, _, err := h.Load("token", 3)
	require.NoError(t, err)
	require.Len(t, transcript.History, m)

	seen := make(map[string]bool, m)
	for _, turn := range transcript.History {
		seen[turn.User] = true
	}
	assert.Len(t, seen, m, "every concurrent append must survive")
}
