package spark

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"spark-client-lite/internal/auth"
)

// Notification is one webhook delivery, with Entity resolved through the
// client's identity cache.
type Notification struct {
	WebhookID string
	Name      string
	Resource  Kind
	Event     string
	ActorID   string
	Entity    Entity
	// Data is the raw "data" object of the delivery.
	Data json.RawMessage
}

type WebhookReceiverConfig struct {
	Client *Client
	// Secret verifies the X-Spark-Signature header. Empty disables the check.
	Secret string
	// Load fetches the notified entity before Handle runs. Deliveries carry
	// ids only; message text, for instance, needs a Load.
	Load   bool
	Handle func(ctx context.Context, n *Notification) error
}

// WebhookReceiver serves webhook deliveries over gin.
type WebhookReceiver struct {
	client *Client
	secret string
	load   bool
	handle func(ctx context.Context, n *Notification) error
}

func NewWebhookReceiver(cfg WebhookReceiverConfig) (*WebhookReceiver, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("spark: webhook receiver requires a client")
	}
	if cfg.Handle == nil {
		return nil, fmt.Errorf("spark: webhook receiver requires a handler")
	}
	return &WebhookReceiver{client: cfg.Client, secret: cfg.Secret, load: cfg.Load, handle: cfg.Handle}, nil
}

// Register mounts the receiver on router at path.
func (r *WebhookReceiver) Register(router gin.IRoutes, path string) {
	router.POST(path, r.Handler())
}

type webhookEnvelope struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Resource string          `json:"resource"`
	Event    string          `json:"event"`
	ActorID  string          `json:"actorId"`
	Data     json.RawMessage `json:"data"`
}

func (r *WebhookReceiver) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		if r.secret != "" {
			if err := auth.VerifyPayloadDetailed(r.secret, body, c.GetHeader(auth.SignatureHeader)); err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
				return
			}
		}

		var envelope webhookEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		kind, ok := KindFromEndpoint(envelope.Resource)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported resource"})
			return
		}
		var data struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(envelope.Data, &data); err != nil || data.ID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing data id"})
			return
		}

		n := &Notification{
			WebhookID: envelope.ID,
			Name:      envelope.Name,
			Resource:  kind,
			Event:     envelope.Event,
			ActorID:   envelope.ActorID,
			Entity:    r.client.Lookup(kind, data.ID),
			Data:      envelope.Data,
		}

		ctx := c.Request.Context()
		if r.load && envelope.Event != EventDeleted {
			if err := r.client.Load(ctx, n.Entity); err != nil {
				r.client.logger.WithFields(logrus.Fields{"kind": kind.String(), "id": data.ID}).
					WithError(err).Warn("webhook entity load failed")
				c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to load entity"})
				return
			}
		}

		if err := r.handle(ctx, n); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}
