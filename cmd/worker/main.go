package main

import (
	"context"
	stdlog "log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/mood-chat/internal/app"
	"github.com/suPer8Hu/mood-chat/internal/chat"
	"github.com/suPer8Hu/mood-chat/internal/config"
	"github.com/suPer8Hu/mood-chat/internal/db"
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
	log = log.With("component", "worker")

	if !cfg.AsyncEnabled() {
		log.Fatal("RABBIT_URL is required for the worker")
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

	svc := chat.NewService(store, pipeline.Classifier, pipeline.Responder, repo, log)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatal("rabbit dial", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal("rabbit channel", "err", err)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareQueues(ch, cfg.RabbitQueue); err != nil {
		log.Fatal("queue declare", "err", err)
	}

	// strict concurrency control
	concurrency := cfg.WorkerConcurrency
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatal("qos", "err", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatal("consume", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("worker started", "queue", cfg.RabbitQueue, "concurrency", concurrency)

	// worker pool
	deliveries := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range deliveries {
				handleDelivery(ctx, log.With("worker", workerID), svc, d)
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			close(deliveries)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Warn("delivery channel closed")
				close(deliveries)
				wg.Wait()
				return
			}
			deliveries <- d
		}
	}
}

// handleDelivery acks processed jobs. Bad messages and failed analyses are
// nacked without requeue so they land in the dead-letter queue.
func handleDelivery(ctx context.Context, log *logger.Logger, svc *chat.Service, d amqp.Delivery) {
	m, err := rabbitmq.DecodeJob(d.Body)
	if err != nil {
		log.Warn("bad message", "err", err)
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	if err := svc.ProcessJob(ctx, m.JobID); err != nil {
		log.Error("job failed", "job_id", m.JobID, "cost", time.Since(start), "err", err)
		_ = d.Nack(false, false)
		return
	}

	if err := d.Ack(false); err != nil {
		log.Error("ack failed", "job_id", m.JobID, "err", err)
		return
	}
	if cost := time.Since(start); cost > 2*time.Second {
		log.Info("job_timing", "job_id", m.JobID, "total", cost)
	}
}
