// Package cleanup garbage-collects HLS storage artifacts when the
// content domain deletes its records.
package cleanup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/your-org/audioflow/internal/events"
	"github.com/your-org/audioflow/internal/hls"
	"github.com/your-org/audioflow/pkg/storage/objectstore"
)

type messageSource interface {
	Fetch(ctx context.Context) (kafkago.Message, error)
}

// Consumer subscribes to the podcast topic and removes all storage
// objects under a deleted podcast's key prefix. Malformed messages are
// logged and skipped; only a transport failure ends the loop.
type Consumer struct {
	source messageSource
	store  objectstore.Client
	bucket string
	logger *zap.Logger
}

type Params struct {
	Source messageSource
	Store  objectstore.Client
	Bucket string
	Logger *zap.Logger
}

func NewConsumer(p Params) *Consumer {
	return &Consumer{
		source: p.Source,
		store:  p.Store,
		bucket: p.Bucket,
		logger: p.Logger,
	}
}

// Run consumes until ctx is cancelled or the transport fails.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("podcast consumer started")

	for {
		msg, err := c.source.Fetch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("fetch podcast message: %w", err)
		}
		c.handleMessage(ctx, msg.Value)
	}
}

func (c *Consumer) handleMessage(ctx context.Context, payload []byte) {
	if len(payload) == 0 {
		c.logger.Warn("empty podcast message")
		return
	}

	var event events.PodcastEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.logger.Warn("unparseable podcast event", zap.Error(err))
		return
	}

	switch event.EventType {
	case "deleted":
		c.handleDeleted(ctx, &event)
	case "created":
		c.logger.Info("podcast created",
			zap.String("podcast_id", event.PodcastID),
			zap.String("title", event.Title))
	case "updated":
		c.logger.Info("podcast updated",
			zap.String("podcast_id", event.PodcastID),
			zap.String("title", event.Title))
	default:
		c.logger.Warn("unknown podcast event type",
			zap.String("event_type", event.EventType),
			zap.String("podcast_id", event.PodcastID))
	}
}

func (c *Consumer) handleDeleted(ctx context.Context, event *events.PodcastEvent) {
	if event.HLSPath == "" {
		c.logger.Warn("podcast deleted event without hls_path",
			zap.String("podcast_id", event.PodcastID))
		return
	}

	prefix := c.derivePrefix(event.HLSPath)
	c.deletePackage(ctx, prefix)
	c.logger.Info("deleted hls objects",
		zap.String("podcast_id", event.PodcastID),
		zap.String("prefix", prefix))
}

// derivePrefix turns "audio-hls/stem/uuid/playlist.m3u8" into
// "stem/uuid".
func (c *Consumer) derivePrefix(hlsPath string) string {
	p := strings.TrimPrefix(hlsPath, c.bucket+"/")
	if idx := strings.LastIndexByte(p, '/'); idx >= 0 {
		return p[:idx]
	}
	return p
}

// deletePackage removes the playlist, the optional init segment, and
// then probes sequentially numbered segments until the first miss.
// Segment numbering is assumed dense and zero-based, so a missing index
// terminates the sequence.
func (c *Consumer) deletePackage(ctx context.Context, prefix string) {
	playlistKey := prefix + "/" + hls.PlaylistName
	if err := c.store.DeleteObject(ctx, c.bucket, playlistKey); err != nil {
		c.logger.Warn("delete playlist failed",
			zap.String("key", playlistKey), zap.Error(err))
	}

	initKey := prefix + "/" + hls.InitSegmentName
	if err := c.store.DeleteObject(ctx, c.bucket, initKey); err != nil {
		c.logger.Debug("init segment absent or delete failed",
			zap.String("key", initKey), zap.Error(err))
	}

	for i := 0; ; i++ {
		segKey := prefix + "/" + fmt.Sprintf(hls.SegmentPattern, i)
		if err := c.store.DeleteObject(ctx, c.bucket, segKey); err != nil {
			break
		}
	}
}
