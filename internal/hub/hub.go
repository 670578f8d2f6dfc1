package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"spark-client-lite/internal/auth"
)

// Deliverer posts one signed notification to a webhook target.
type Deliverer interface {
	Deliver(ctx context.Context, targetURL string, body []byte, signature string) error
}

// Subscription is an active webhook registration.
type Subscription struct {
	WebhookID string
	Name      string
	OwnerID   string
	TargetURL string
	Resource  string
	Event     string
	Filter    string
	Secret    string
}

// Event is a change to one record of the fake service.
type Event struct {
	Resource string
	Event    string
	ActorID  string
	Data     map[string]any
}

type envelope struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	TargetURL string         `json:"targetUrl"`
	Resource  string         `json:"resource"`
	Event     string         `json:"event"`
	Filter    string         `json:"filter,omitempty"`
	CreatedBy string         `json:"createdBy"`
	ActorID   string         `json:"actorId"`
	Data      map[string]any `json:"data"`
}

// Hub fans record changes out to matching webhooks. A subscription whose
// delivery fails is dropped and reported through OnDisable.
type Hub struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription

	deliverer Deliverer
	logger    logrus.FieldLogger
	// OnDisable is called with the webhook id of a dropped subscription.
	OnDisable func(webhookID string)
}

func New(deliverer Deliverer, logger logrus.FieldLogger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{subscriptions: make(map[string]*Subscription), deliverer: deliverer, logger: logger}
}

func (h *Hub) Register(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscriptions[sub.WebhookID] = sub
}

func (h *Hub) Unregister(webhookID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscriptions, webhookID)
}

// Publish delivers ev to every matching subscription and returns the number
// of successful deliveries.
func (h *Hub) Publish(ctx context.Context, ev Event) int {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subscriptions))
	for _, s := range h.subscriptions {
		if s.matches(ev) {
			subs = append(subs, s)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	var failed []*Subscription
	for _, s := range subs {
		body, err := json.Marshal(envelope{
			ID:        s.WebhookID,
			Name:      s.Name,
			TargetURL: s.TargetURL,
			Resource:  ev.Resource,
			Event:     ev.Event,
			Filter:    s.Filter,
			CreatedBy: s.OwnerID,
			ActorID:   ev.ActorID,
			Data:      ev.Data,
		})
		if err != nil {
			h.logger.WithError(err).Error("webhook: encode notification")
			continue
		}
		signature := ""
		if s.Secret != "" {
			signature = auth.SignPayload(s.Secret, body)
		}
		if err := h.deliverer.Deliver(ctx, s.TargetURL, body, signature); err != nil {
			h.logger.WithFields(logrus.Fields{"webhook": s.WebhookID, "target": s.TargetURL}).
				WithError(err).Warn("webhook: delivery failed")
			failed = append(failed, s)
			continue
		}
		delivered++
	}
	for _, s := range failed {
		h.Unregister(s.WebhookID)
		if h.OnDisable != nil {
			h.OnDisable(s.WebhookID)
		}
	}
	return delivered
}

func (s *Subscription) matches(ev Event) bool {
	if s.Resource != ev.Resource {
		return false
	}
	if s.Event != "all" && s.Event != ev.Event {
		return false
	}
	if s.Filter == "" {
		return true
	}
	conditions, err := url.ParseQuery(s.Filter)
	if err != nil {
		return false
	}
	for key, values := range conditions {
		got, ok := ev.Data[key]
		if !ok || len(values) == 0 || fmt.Sprint(got) != values[0] {
			return false
		}
	}
	return true
}

// HTTPDeliverer posts notifications with net/http.
type HTTPDeliverer struct {
	Client *http.Client
}

func NewHTTPDeliverer() *HTTPDeliverer {
	return &HTTPDeliverer{Client: &http.Client{Timeout: 10 * time.Second}}
}

func (d *HTTPDeliverer) Deliver(ctx context.Context, targetURL string, body []byte, signature string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if signature != "" {
		req.Header.Set(auth.SignatureHeader, signature)
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("target answered %d", resp.StatusCode)
	}
	return nil
}
