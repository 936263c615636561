package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FlorianRuen/github-portfolio-proxy/cache"
	"github.com/FlorianRuen/github-portfolio-proxy/config"
	"github.com/FlorianRuen/github-portfolio-proxy/controller"
	"github.com/FlorianRuen/github-portfolio-proxy/logger"
	"github.com/FlorianRuen/github-portfolio-proxy/service"
	"github.com/FlorianRuen/github-portfolio-proxy/upstream"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("unable to load configuration")
	}

	// configure logger
	logger.Setup(*cfg)

	// responses from github are kept in memory, shared by all endpoints
	store, err := cache.NewStore(cfg.Cache)
	if err != nil {
		log.WithError(err).Fatal("unable to setup response cache")
	}

	defer store.Close()

	log.WithFields(log.Fields{
		"maxSizeBytes": cfg.Cache.MaxSizeBytes,
		"ttl":          store.TTL().String(),
	}).Debug("response cache ready")

	// setup github client
	// we do here and pass the client to Github service to easily improve tests with mock client
	githubClient := upstream.NewClient(cfg.Github, store, nil)

	// align the local rate limiter on the limits github applies to us
	// github may be unreachable at startup, the configured limit is kept in this case
	syncCtx, syncCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Github.RequestTimeoutSeconds)*time.Second)
	if err := githubClient.SyncRateLimit(syncCtx); err != nil {
		log.WithError(err).Warning("unable to sync rate limiter with github, will use configured limit")
	}

	syncCancel()

	// setup handlers and services
	githubService := service.NewGithubService(*cfg, githubClient)
	apiController := controller.NewAPIController(*cfg, githubService)

	// setup server and define all routes
	gin.SetMode(gin.ReleaseMode)
	router := controller.NewRouter(apiController)

	server := &http.Server{
		Addr:              ":" + cfg.API.ListenPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// start with configuration
	go func() {
		log.WithField("owner", cfg.Github.Owner).Info("server listening on port " + cfg.API.ListenPort)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("error while starting server")
		}
	}()

	// wait for interrupt signal to gracefully shut down the server
	// kill default send syscall.SIGTERM
	// kill -2 is syscall.SIGINT
	quit := make(chan os.Signal, 1)

	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("SIGINT, SIGTERM received, will shut down server ...")

	// the server has ShutdownTimeoutSeconds to finish the requests it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.API.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	} else {
		log.Info("Application stopped gracefully !")
	}
}
