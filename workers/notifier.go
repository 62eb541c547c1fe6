package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"squad-clash-system/utils"
)

// Change is one entity-change notification pushed to the delivery channel.
type Change struct {
	Kind     string      `json:"kind"` // e.g. "event.closed", "power.used", "challenge.passed"
	SquadID  string      `json:"squad_id"`
	EntityID string      `json:"entity_id"`
	Payload  interface{} `json:"payload,omitempty"`
	At       time.Time   `json:"at"`
}

// Notifier posts entity changes to an external webhook, fire-and-forget.
// Publishing never blocks the caller and delivery failures are only logged —
// the core must not depend on the channel at all.
type Notifier struct {
	webhookURL string
	ch         chan Change
}

func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		ch:         make(chan Change, 256),
	}
}

// Publish enqueues a change, dropping it if the buffer is full or the
// notifier is not configured. Safe on a nil receiver so services don't have
// to care whether notifications are wired.
func (n *Notifier) Publish(kind, squadID, entityID string, payload interface{}) {
	if n == nil {
		return
	}
	select {
	case n.ch <- Change{Kind: kind, SquadID: squadID, EntityID: entityID, Payload: payload, At: time.Now()}:
	default:
		log.Printf("[NOTIFY] buffer full, dropping %s for %s", kind, entityID)
	}
}

// Start drains the queue until ctx is cancelled.
func (n *Notifier) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case change := <-n.ch:
			n.post(ctx, change)
		}
	}
}

func (n *Notifier) post(ctx context.Context, change Change) {
	if n.webhookURL == "" {
		return
	}
	body, err := json.Marshal(change)
	if err != nil {
		log.Printf("[NOTIFY] marshal failed for %s: %v", change.Kind, err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, "POST", n.webhookURL, bytes.NewReader(body))
	if err != nil {
		log.Printf("[NOTIFY] request build failed: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := utils.HTTPClient.Do(req)
	if err != nil {
		log.Printf("[NOTIFY] delivery failed for %s: %v", change.Kind, err)
		return
	}
	resp.Body.Close()
}
