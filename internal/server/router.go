package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"spark-client-lite/internal/auth"
	"spark-client-lite/internal/handler"
	"spark-client-lite/internal/hub"
	"spark-client-lite/internal/middleware"
	"spark-client-lite/internal/store"
)

type Deps struct {
	Store       *store.Store
	TokenConfig auth.TokenConfig
	// Hub delivers webhook notifications. A hub posting over HTTP is
	// created when nil.
	Hub      *hub.Hub
	PageSize int
	// RateLimit caps requests per user and minute; zero disables it.
	RateLimit int
	Logger    logrus.FieldLogger
	// Registry receives the request metrics served on /metrics.
	Registry *prometheus.Registry
	Now      func() time.Time
}

func NewRouter(deps Deps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	webhooks := deps.Hub
	if webhooks == nil {
		webhooks = hub.New(hub.NewHTTPDeliverer(), logger)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Metrics(registry))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	authHandler := &handler.AuthHandler{
		Store:        deps.Store,
		TokenConfig:  deps.TokenConfig,
		TokenLimiter: middleware.NewRateLimiter(30, time.Minute),
	}
	r.POST("/v1/access_token", authHandler.AccessToken)

	h := &handler.Handler{
		Store:    deps.Store,
		Hub:      webhooks,
		Logger:   logger,
		PageSize: deps.PageSize,
		Now:      deps.Now,
	}
	webhooks.OnDisable = h.DisableWebhook

	v1 := r.Group("/v1")
	v1.Use(middleware.RequireAuth(deps.TokenConfig, func(userID string) {
		deps.Store.GetOrCreatePerson(userID, userID+"@sparkfake.invalid", "", time.Now().UTC())
	}))
	if deps.RateLimit > 0 {
		v1.Use(middleware.RateLimitMiddleware(middleware.NewRateLimiter(deps.RateLimit, time.Minute)))
	}

	v1.GET("/rooms", h.ListRooms)
	v1.POST("/rooms", h.CreateRoom)
	v1.GET("/rooms/:id", h.GetRoom)
	v1.PUT("/rooms/:id", h.UpdateRoom)
	v1.DELETE("/rooms/:id", h.DeleteRoom)

	v1.GET("/messages", h.ListMessages)
	v1.POST("/messages", h.CreateMessage)
	v1.GET("/messages/:id", h.GetMessage)
	v1.DELETE("/messages/:id", h.DeleteMessage)

	v1.GET("/people", h.ListPeople)
	v1.POST("/people", h.CreatePerson)
	v1.GET("/people/me", h.Me)
	v1.GET("/people/:id", h.GetPerson)
	v1.PUT("/people/:id", h.UpdatePerson)
	v1.DELETE("/people/:id", h.DeletePerson)

	v1.GET("/teams", h.ListTeams)
	v1.POST("/teams", h.CreateTeam)
	v1.GET("/teams/:id", h.GetTeam)
	v1.PUT("/teams/:id", h.UpdateTeam)
	v1.DELETE("/teams/:id", h.DeleteTeam)

	v1.GET("/memberships", h.ListMemberships)
	v1.POST("/memberships", h.CreateMembership)
	v1.GET("/memberships/:id", h.GetMembership)
	v1.PUT("/memberships/:id", h.UpdateMembership)
	v1.DELETE("/memberships/:id", h.DeleteMembership)

	v1.GET("/team/memberships", h.ListTeamMemberships)
	v1.POST("/team/memberships", h.CreateTeamMembership)
	v1.GET("/team/memberships/:id", h.GetTeamMembership)
	v1.PUT("/team/memberships/:id", h.UpdateTeamMembership)
	v1.DELETE("/team/memberships/:id", h.DeleteTeamMembership)

	v1.GET("/webhooks", h.ListWebhooks)
	v1.POST("/webhooks", h.CreateWebhook)
	v1.GET("/webhooks/:id", h.GetWebhook)
	v1.PUT("/webhooks/:id", h.UpdateWebhook)
	v1.DELETE("/webhooks/:id", h.DeleteWebhook)

	v1.POST("/contents", h.UploadContent)
	v1.GET("/contents/:id", h.GetContent)
	v1.HEAD("/contents/:id", h.GetContent)

	return r
}
