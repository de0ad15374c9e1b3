package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/your-org/audioflow/internal/cleanup"
	"github.com/your-org/audioflow/internal/events"
	"github.com/your-org/audioflow/internal/hls"
	"github.com/your-org/audioflow/internal/mediatool"
	"github.com/your-org/audioflow/internal/progress"
	"github.com/your-org/audioflow/internal/upload"
	"github.com/your-org/audioflow/internal/validation"
	"github.com/your-org/audioflow/pkg/config"
	"github.com/your-org/audioflow/pkg/kafka"
	"github.com/your-org/audioflow/pkg/logger"
	"github.com/your-org/audioflow/pkg/storage/objectstore"
	"github.com/your-org/audioflow/pkg/tracing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logr, err := logger.New(cfg.App.LogLevel, cfg.App.Environment)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	traceShutdown, err := tracing.Init(ctx, tracing.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
		Attributes:  parseResourceAttributes(cfg.Tracing.ResourceAttr),
		ServiceName: cfg.App.Name,
	})
	if err != nil {
		logr.Fatal("init tracing", zap.Error(err))
	}
	defer traceShutdown(context.Background()) //nolint:errcheck

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.MediaTopic,
		SendTimeout:  cfg.Kafka.SendTimeout,
		BatchTimeout: cfg.Kafka.BatchTimeout,
		Compression:  kafka.CompressionFromString(cfg.Kafka.CompressionCodec),
		RequiredAcks: kafkago.RequireAll,
		MaxAttempts:  cfg.Kafka.Retries,
	})
	defer producer.Close() //nolint:errcheck

	store, err := objectstore.New(objectstore.Config{
		Provider:  cfg.Storage.Provider,
		Endpoint:  cfg.Storage.Endpoint,
		Region:    cfg.Storage.Region,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		FSRoot:    cfg.Storage.FSRoot,
	})
	if err != nil {
		logr.Fatal("init object store", zap.Error(err))
	}
	defer store.Close() //nolint:errcheck

	runner := mediatool.NewRunner(cfg.Tools.MaxConcurrent)

	prober := validation.NewProber(validation.ProberConfig{
		Runner:        runner,
		FFprobePath:   cfg.Tools.FFprobePath,
		FFmpegPath:    cfg.Tools.FFmpegPath,
		ProbeTimeout:  cfg.Tools.ProbeTimeout,
		DecodeTimeout: cfg.Tools.DecodeTimeout,
	})

	transcoder := hls.NewTranscoder(hls.TranscoderConfig{
		Runner:     runner,
		FFmpegPath: cfg.Tools.FFmpegPath,
		Timeout:    cfg.Tools.TranscodeTimeout,
	})

	tracker := progress.NewTracker()
	publisher := events.NewPublisher(producer, logr)

	service := upload.NewService(upload.Params{
		Store:      store,
		Prober:     prober,
		Transcoder: transcoder,
		Tracker:    tracker,
		Publisher:  publisher,
		Logger:     logr,
		HLSBucket:  cfg.Storage.HLSBucket,
		MaxBytes:   cfg.Upload.MaxSizeBytes,
	})

	handler := upload.NewHTTPHandler(upload.HandlerParams{
		Service:      service,
		Tracker:      tracker,
		Store:        store,
		Logger:       logr,
		HLSBucket:    cfg.Storage.HLSBucket,
		MaxSizeBytes: cfg.Upload.MaxSizeBytes,
	})

	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.PodcastTopic,
		GroupID: cfg.Kafka.GroupID,
	})
	defer consumer.Close() //nolint:errcheck

	deletionConsumer := cleanup.NewConsumer(cleanup.Params{
		Source: consumer,
		Store:  store,
		Bucket: cfg.Storage.HLSBucket,
		Logger: logr,
	})

	go func() {
		if err := deletionConsumer.Run(ctx); err != nil {
			logr.Error("podcast consumer terminated", zap.Error(err))
		}
	}()

	server := &http.Server{
		Addr:        cfg.HTTP.Addr,
		Handler:     handler.Router(),
		ReadTimeout: cfg.HTTP.ReadTimeout,
		IdleTimeout: cfg.HTTP.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logr.Error("http server shutdown failed", zap.Error(err))
		}
	}()

	logr.Info("audioflow service starting", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Fatal("http server failed", zap.Error(err))
	}
}

func parseResourceAttributes(raw string) map[string]string {
	if raw == "" {
		return map[string]string{}
	}
	attrs := map[string]string{}
	pairs := strings.Split(raw, ",")
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		if !strings.Contains(pair, "=") {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		attrs[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return attrs
}
