package spark

import (
	"context"
	"net/url"
)

// Webhook event names.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
	EventAll     = "all"
)

// Webhook subscribes TargetURL to events on one resource kind.
type Webhook struct {
	Object

	Name      string
	TargetURL string
	Resource  Kind
	Event     string
	Filter    string
	// Secret keys the HMAC signature the service attaches to notifications.
	Secret string
	Status string
}

func NewWebhook(name, targetURL string, resource Kind, event string) *Webhook {
	return &Webhook{Name: name, TargetURL: targetURL, Resource: resource, Event: event}
}

func (w *Webhook) Kind() Kind { return KindWebhook }

func (w *Webhook) wireFields() map[string]any {
	data := w.baseFields()
	w.mu.RLock()
	defer w.mu.RUnlock()
	setString(data, "name", w.Name)
	setString(data, "targetUrl", w.TargetURL)
	setString(data, "resource", w.Resource.Endpoint())
	setString(data, "event", w.Event)
	setString(data, "filter", w.Filter)
	setString(data, "secret", w.Secret)
	setString(data, "status", w.Status)
	return data
}

func (w *Webhook) validate(op Operation) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.Name == "" {
		return invalidState(KindWebhook, string(op), "name required")
	}
	target, err := url.Parse(w.TargetURL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return invalidState(KindWebhook, string(op), "absolute http(s) target url required")
	}
	if op == OpCreate {
		if w.Resource.Endpoint() == "" {
			return invalidState(KindWebhook, string(op), "supported resource required")
		}
		switch w.Event {
		case EventCreated, EventUpdated, EventDeleted, EventAll:
		default:
			return invalidState(KindWebhook, string(op), "unknown event "+w.Event)
		}
	}
	return nil
}

func (w *Webhook) decode(d *wireDecoder, _ *Client) func() {
	name := d.str("name", true)
	target := d.str("targetUrl", true)
	resourceName := d.str("resource", true)
	resource, ok := KindFromEndpoint(resourceName)
	if resourceName != "" && !ok {
		d.invalid = append(d.invalid, "resource")
	}
	event := d.str("event", true)
	filter := d.str("filter", false)
	secret := d.str("secret", false)
	status := d.str("status", false)
	return func() {
		w.Name = name
		w.TargetURL = target
		w.Resource = resource
		w.Event = event
		w.Filter = filter
		if secret != "" {
			w.Secret = secret
		}
		w.Status = status
	}
}

type WebhookFilter struct {
	Max int
}

func (c *Client) ListWebhooks(ctx context.Context, filter WebhookFilter) (*Page[*Webhook], error) {
	query := url.Values{}
	setMax(query, filter.Max)
	return listEntities(ctx, c, KindWebhook, KindWebhook.Endpoint(), query, c.Webhook)
}
