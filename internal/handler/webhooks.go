package handler

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"spark-client-lite/internal/hub"
	"spark-client-lite/internal/model"
)

type webhookBody struct {
	Name      string `json:"name"`
	TargetURL string `json:"targetUrl"`
	Resource  string `json:"resource"`
	Event     string `json:"event"`
	Filter    string `json:"filter"`
	Secret    string `json:"secret"`
}

func subscriptionFor(w model.Webhook) *hub.Subscription {
	return &hub.Subscription{
		WebhookID: w.ID,
		Name:      w.Name,
		OwnerID:   w.CreatedBy,
		TargetURL: w.TargetURL,
		Resource:  w.Resource,
		Event:     w.Event,
		Filter:    w.Filter,
		Secret:    w.Secret,
	}
}

func validTarget(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// DisableWebhook marks a webhook inactive after its delivery failed.
func (h *Handler) DisableWebhook(webhookID string) {
	if h.Store.SetWebhookStatus(webhookID, "inactive") && h.Logger != nil {
		h.Logger.WithField("webhook", webhookID).Info("webhook disabled")
	}
}

func (h *Handler) ListWebhooks(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	writePage(h, c, h.Store.ListWebhooks(userID))
}

func (h *Handler) CreateWebhook(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var body webhookBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	if body.TargetURL != "" && !validTarget(body.TargetURL) {
		badRequest(c, "targetUrl must be an absolute http(s) URL")
		return
	}
	w, err := h.Store.CreateWebhook(model.Webhook{
		Name:      body.Name,
		TargetURL: body.TargetURL,
		Resource:  body.Resource,
		Event:     body.Event,
		Filter:    body.Filter,
		Secret:    body.Secret,
		CreatedBy: userID,
	}, h.now())
	if err != nil {
		fail(c, err)
		return
	}
	if h.Hub != nil {
		h.Hub.Register(subscriptionFor(w))
	}
	if h.Logger != nil {
		h.Logger.WithFields(logrus.Fields{"webhook": w.ID, "resource": w.Resource, "event": w.Event}).Info("webhook registered")
	}
	h.publish(c, "webhooks", "created", w)
	c.JSON(http.StatusOK, w)
}

func (h *Handler) GetWebhook(c *gin.Context) {
	w, ok := h.Store.GetWebhook(c.Param("id"))
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, w)
}

// UpdateWebhook renames or retargets a webhook and reactivates it.
func (h *Handler) UpdateWebhook(c *gin.Context) {
	var body webhookBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	if body.TargetURL != "" && !validTarget(body.TargetURL) {
		badRequest(c, "targetUrl must be an absolute http(s) URL")
		return
	}
	w, err := h.Store.UpdateWebhook(c.Param("id"), body.Name, body.TargetURL)
	if err != nil {
		fail(c, err)
		return
	}
	if h.Hub != nil {
		h.Hub.Register(subscriptionFor(w))
	}
	h.publish(c, "webhooks", "updated", w)
	c.JSON(http.StatusOK, w)
}

func (h *Handler) DeleteWebhook(c *gin.Context) {
	w, ok := h.Store.GetWebhook(c.Param("id"))
	if !ok || !h.Store.DeleteWebhook(w.ID) {
		notFound(c)
		return
	}
	if h.Hub != nil {
		h.Hub.Unregister(w.ID)
	}
	h.publish(c, "webhooks", "deleted", w)
	c.Status(http.StatusNoContent)
}
