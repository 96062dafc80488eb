package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierDeliversEvent(t *testing.T) {
	var mu sync.Mutex
	var bodies [][]byte
	received := make(chan struct{}, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		received <- struct{}{}
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL)
	n.Dispatch("abcdefghij", "curl/8.0")

	select {
	case <-received:
	case <-time.After(3 * time.Second):
		t.Fatal("webhook was never called")
	}
	n.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 1)

	var payload struct {
		Embeds []struct {
			Title  string `json:"title"`
			Fields []struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			} `json:"fields"`
		} `json:"embeds"`
	}
	require.NoError(t, json.Unmarshal(bodies[0], &payload))
	require.Len(t, payload.Embeds, 1)

	values := map[string]string{}
	for _, f := range payload.Embeds[0].Fields {
		values[f.Name] = f.Value
	}
	assert.Equal(t, "abcdefghij", values["Token"])
	assert.Equal(t, "curl/8.0", values["User Agent"])
	assert.NotEmpty(t, values["Event ID"])
}

func TestNotifierSwallowsDeliveryFailure(t *testing.T) {
	// Nothing is listening on this address; Dispatch and Close must still
	// return without surfacing an error.
	n := NewNotifier("http://127.0.0.1:0/webhook")
	n.Dispatch("abcdefghij", "")
	n.Close()
}

func TestNotifierDisabledWithoutURL(t *testing.T) {
	n := NewNotifier("")
	n.Dispatch("abcdefghij", "agent")
	n.Close()
}

func TestNotifierDoesNotBlockWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	n := NewNotifier(srv.URL)

	done := make(chan struct{})
	go func() {
		for i := 0; i < queueSize*2; i++ {
			n.Dispatch("abcdefghij", "agent")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Dispatch blocked on a full queue")
	}
}
