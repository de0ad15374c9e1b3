// Package events publishes upload lifecycle events to the media topic.
// Delivery is best-effort: a failed publish is logged and never reaches
// the request path.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/your-org/audioflow/internal/validation"
)

const (
	TypeStartUpload = "media.start_upload"
	TypeUploaded    = "media.uploaded"
	TypeError       = "media.error"
)

// StartUploadEvent announces that a new upload session began.
type StartUploadEvent struct {
	EventType string `json:"event_type"`
	UploadID  string `json:"upload_id"`
	Filename  string `json:"filename"`
	Timestamp string `json:"timestamp"`
}

// UploadedEvent announces a fully published HLS package.
type UploadedEvent struct {
	EventType  string   `json:"event_type"`
	UploadID   string   `json:"upload_id"`
	FileID     string   `json:"file_id"`
	Filename   string   `json:"filename"`
	Format     string   `json:"format,omitempty"`
	Codec      string   `json:"codec,omitempty"`
	SampleRate *int     `json:"sample_rate,omitempty"`
	Channels   *int     `json:"channels,omitempty"`
	Duration   *float64 `json:"duration_secs,omitempty"`
	BitRate    *int64   `json:"bit_rate,omitempty"`
	SizeBytes  int64    `json:"size_bytes"`
	HLSPath    string   `json:"hls_path"`
	Timestamp  string   `json:"timestamp"`
}

// ErrorEvent announces a failed upload.
type ErrorEvent struct {
	EventType    string `json:"event_type"`
	UploadID     string `json:"upload_id"`
	ErrorMessage string `json:"error_message"`
	Timestamp    string `json:"timestamp"`
}

// PodcastEvent is the content domain's lifecycle payload consumed from
// the podcast topic.
type PodcastEvent struct {
	EventType string `json:"event_type"`
	PodcastID string `json:"podcast_id"`
	HLSPath   string `json:"hls_path,omitempty"`
	Title     string `json:"title,omitempty"`
	Timestamp string `json:"timestamp"`
}

type producer interface {
	Publish(ctx context.Context, key, value []byte, headers map[string]string) error
}

// Publisher emits lifecycle events. All methods are fire-and-forget:
// the outcome is delivered or failed-but-logged, never an error to the
// caller.
type Publisher struct {
	producer producer
	logger   *zap.Logger
}

func NewPublisher(p producer, logger *zap.Logger) *Publisher {
	return &Publisher{producer: p, logger: logger}
}

// StartUpload publishes a media.start_upload event keyed by upload id.
func (p *Publisher) StartUpload(ctx context.Context, uploadID, filename string) {
	event := StartUploadEvent{
		EventType: TypeStartUpload,
		UploadID:  uploadID,
		Filename:  filename,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	p.send(ctx, event.EventType, uploadID, event)
}

// Uploaded publishes a media.uploaded event carrying the validation
// metadata and the final storage path. Each publication mints a fresh
// file id.
func (p *Publisher) Uploaded(ctx context.Context, uploadID, filename string, meta *validation.Result, sizeBytes int64, hlsPath string) {
	event := UploadedEvent{
		EventType: TypeUploaded,
		UploadID:  uploadID,
		FileID:    uuid.NewString(),
		Filename:  filename,
		SizeBytes: sizeBytes,
		HLSPath:   hlsPath,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if meta != nil {
		event.Format = meta.Format
		event.Codec = meta.Codec
		event.SampleRate = meta.SampleRate
		event.Channels = meta.Channels
		event.Duration = meta.Duration
		event.BitRate = meta.BitRate
	}
	p.send(ctx, event.EventType, event.FileID, event)
}

// UploadError publishes a media.error event for a failed upload.
func (p *Publisher) UploadError(ctx context.Context, uploadID, errorMessage string) {
	event := ErrorEvent{
		EventType:    TypeError,
		UploadID:     uploadID,
		ErrorMessage: errorMessage,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
	p.send(ctx, event.EventType, uploadID, event)
}

func (p *Publisher) send(ctx context.Context, eventType, key string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("marshal lifecycle event",
			zap.String("event_type", eventType), zap.Error(err))
		return
	}

	headers := map[string]string{"event_type": eventType}
	if err := p.producer.Publish(ctx, []byte(key), data, headers); err != nil {
		p.logger.Warn("publish lifecycle event failed",
			zap.String("event_type", eventType),
			zap.String("key", key),
			zap.Error(err))
		return
	}

	p.logger.Info("published lifecycle event",
		zap.String("event_type", eventType), zap.String("key", key))
}
