package notify

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	queueSize   = 64
	sendTimeout = 2 * time.Second
)

type event struct {
	ID        string
	Token     string
	UserAgent string
}

// Notifier posts best-effort usage notifications to a webhook. Events go
// through a bounded queue drained by a single worker; when the queue is full
// the event is dropped. Failures are logged and never reach the caller, and
// delivery order is not guaranteed. An empty URL disables dispatch entirely.
type Notifier struct {
	url    string
	client *http.Client

	queue chan event
	wg    sync.WaitGroup
	once  sync.Once
}

func NewNotifier(url string) *Notifier {
	n := &Notifier{
		url:    url,
		client: &http.Client{Timeout: sendTimeout},
		queue:  make(chan event, queueSize),
	}

	if url != "" {
		n.wg.Add(1)
		go n.run()
	}
	return n
}

// Dispatch enqueues a notification without blocking.
func (n *Notifier) Dispatch(token, userAgent string) {
	if n.url == "" {
		return
	}

	e := event{ID: uuid.NewString(), Token: token, UserAgent: userAgent}
	select {
	case n.queue <- e:
	default:
		log.Printf("Notification queue full, dropping event %s", e.ID)
	}
}

// Close stops accepting events and waits for the worker to drain the queue.
// Undelivered events are lost; that is the contract.
func (n *Notifier) Close() {
	n.once.Do(func() {
		close(n.queue)
	})
	n.wg.Wait()
}

func (n *Notifier) run() {
	defer n.wg.Done()
	for e := range n.queue {
		n.send(e)
	}
}

func (n *Notifier) send(e event) {
	payload := map[string]any{
		"embeds": []map[string]any{{
			"title": "PlaygroundAI API",
			"fields": []map[string]any{
				{"name": "Token", "value": orZero(e.Token), "inline": false},
				{"name": "User Agent", "value": orZero(e.UserAgent), "inline": false},
				{"name": "Event ID", "value": e.ID, "inline": false},
			},
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Webhook error (non-critical): %v", err)
		return
	}

	resp, err := n.client.Post(n.url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("Webhook error (non-critical): %v", err)
		return
	}
	resp.Body.Close()
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
