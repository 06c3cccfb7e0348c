package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/mood-chat/internal/app"
	"github.com/suPer8Hu/mood-chat/internal/chat"
	"github.com/suPer8Hu/mood-chat/internal/config"
	"github.com/suPer8Hu/mood-chat/internal/db"
	"github.com/suPer8Hu/mood-chat/internal/httpapi"
	"github.com/suPer8Hu/mood-chat/internal/httpapi/handlers"
	"github.com/suPer8Hu/mood-chat/internal/logger"
	"github.com/suPer8Hu/mood-chat/internal/store/rabbitmq"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.AppMode)
	if err != nil {
		stdlog.Fatalf("init logger: %v", err)
	}
	defer log.Sync()

	if cfg.AppMode == "prod" || cfg.AppMode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := app.CheckAsync(cfg); err != nil {
		log.Fatal("invalid config", "err", err)
	}

	gdb, err := db.Connect(cfg.DBDSN, chat.Models()...)
	if err != nil {
		log.Fatal("db connect failed", "err", err)
	}
	repo := chat.NewRepo(gdb, cfg.TranscriptMaxEntries)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 2*time.Minute)
	pipeline, err := app.LoadPipeline(startCtx, cfg, log)
	cancelStart()
	if err != nil {
		log.Fatal("failed to load model or tokenizer", "err", err)
	}

	store, closeStore, err := app.OpenTranscriptStore(cfg, repo)
	if err != nil {
		log.Fatal("transcript store", "err", err)
	}
	defer closeStore()

	var (
		jobs *chat.Repo
		pub  handlers.JobPublisher
	)
	if cfg.AsyncEnabled() {
		p, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Fatal("rabbit publisher", "err", err)
		}
		defer p.Close()
		jobs, pub = repo, p
	}

	svc := chat.NewService(store, pipeline.Classifier, pipeline.Responder, jobs, log)
	r := httpapi.NewRouter(handlers.NewHandler(svc, pub, log), cfg, log)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server starting", "addr", cfg.HTTPAddr, "transcript", cfg.TranscriptBackend, "async", cfg.AsyncEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown", "err", err)
	}
}
