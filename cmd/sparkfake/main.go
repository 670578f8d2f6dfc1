package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"spark-client-lite/internal/auth"
	"spark-client-lite/internal/config"
	"spark-client-lite/internal/hub"
	"spark-client-lite/internal/server"
	"spark-client-lite/internal/store"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("load config")
	}
	logger.SetLevel(cfg.LogLevel)

	gin.SetMode(cfg.GinMode)
	st := store.New()

	tokenCfg := auth.DefaultTokenConfig(cfg.MasterSecret)
	tokenCfg.Expiry = cfg.TokenExpiry

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router := server.NewRouter(server.Deps{
		Store:       st,
		TokenConfig: tokenCfg,
		Hub:         hub.New(hub.NewHTTPDeliverer(), logger),
		PageSize:    cfg.PageSize,
		RateLimit:   cfg.RateLimit,
		Logger:      logger,
		Registry:    registry,
	})

	if email := os.Getenv("SPARKFAKE_DEV_EMAIL"); email != "" {
		person, _ := st.GetOrCreatePerson("dev", email, "Developer", time.Now().UTC())
		token, err := auth.CreateToken(person.ID, tokenCfg)
		if err != nil {
			logger.WithError(err).Fatal("mint dev token")
		}
		fmt.Fprintf(os.Stderr, "dev access token for %s:\n%s\n", email, token)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.WithField("addr", fmt.Sprintf(":%d", cfg.Port)).Info("listening")
	if err := server.Run(ctx, cfg, router); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
	logger.Info("shut down")
}
