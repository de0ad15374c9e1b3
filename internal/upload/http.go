package upload

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/your-org/audioflow/internal/progress"
	"github.com/your-org/audioflow/pkg/storage/objectstore"
)

const uploadIDHeader = "x-upload-id"

// Response is the uniform result shape for the upload endpoint, success
// or failure.
type Response struct {
	Success      bool     `json:"success"`
	Message      string   `json:"message,omitempty"`
	UploadID     string   `json:"upload_id,omitempty"`
	Filename     string   `json:"filename,omitempty"`
	Format       string   `json:"format,omitempty"`
	Codec        string   `json:"codec,omitempty"`
	SampleRate   *int     `json:"sample_rate,omitempty"`
	Channels     *int     `json:"channels,omitempty"`
	DurationSecs *float64 `json:"duration_secs,omitempty"`
	BitRate      *int64   `json:"bit_rate,omitempty"`
	SizeBytes    int64    `json:"size_bytes,omitempty"`
	HLSPath      string   `json:"hls_path,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// HTTPHandler exposes the upload, progress-stream, and artifact
// endpoints.
type HTTPHandler struct {
	service       *Service
	tracker       *progress.Tracker
	store         objectstore.Client
	logger        *zap.Logger
	bucket        string
	maxSizeBytes  int64
	pollInterval  time.Duration
	maxPolls      int
	terminalGrace time.Duration
	router        chi.Router
}

type HandlerParams struct {
	Service      *Service
	Tracker      *progress.Tracker
	Store        objectstore.Client
	Logger       *zap.Logger
	HLSBucket    string
	MaxSizeBytes int64

	// push-stream timing, zero values take the defaults
	PollInterval  time.Duration
	MaxPolls      int
	TerminalGrace time.Duration
}

// NewHTTPHandler constructs the HTTP handler and wires routes.
func NewHTTPHandler(p HandlerParams) *HTTPHandler {
	h := &HTTPHandler{
		service:       p.Service,
		tracker:       p.Tracker,
		store:         p.Store,
		logger:        p.Logger,
		bucket:        p.HLSBucket,
		maxSizeBytes:  p.MaxSizeBytes,
		pollInterval:  p.PollInterval,
		maxPolls:      p.MaxPolls,
		terminalGrace: p.TerminalGrace,
	}
	if h.pollInterval <= 0 {
		h.pollInterval = 300 * time.Millisecond
	}
	if h.maxPolls <= 0 {
		h.maxPolls = 100
	}
	if h.terminalGrace <= 0 {
		h.terminalGrace = 5 * time.Second
	}
	h.buildRouter()
	return h
}

func (h *HTTPHandler) buildRouter() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Post("/api/media/upload", h.handleUpload)
	r.Get("/api/media/progress/{uploadID}", h.handleProgress)
	r.Get("/hls/*", h.handleArtifact)

	h.router = r
}

// Router exposes the configured chi router.
func (h *HTTPHandler) Router() http.Handler {
	return h.router
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *HTTPHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > 0 && r.ContentLength > h.maxSizeBytes+readChunkSize {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	part, err := nextFilePart(mr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer part.Close()

	uploadID := r.Header.Get(uploadIDHeader)
	if uploadID == "" {
		uploadID = uuid.NewString()
	}

	result, err := h.service.Process(r.Context(), Request{
		UploadID: uploadID,
		Filename: part.FileName(),
		Body:     part,
	})
	if err != nil {
		var uerr *Error
		if !errors.As(err, &uerr) {
			uerr = failWith(http.StatusInternalServerError, "upload failed", err)
		}
		writeJSON(w, uerr.Status, Response{
			Success:  false,
			UploadID: uploadID,
			Error:    uerr.Message,
		})
		return
	}

	resp := Response{
		Success:  true,
		Message:  "audio validated, converted to HLS, and uploaded to storage",
		UploadID: uploadID,
		Filename: result.Filename,

		SizeBytes: result.SizeBytes,
		HLSPath:   result.HLSPath,
	}
	if result.Meta != nil {
		resp.Format = result.Meta.Format
		resp.Codec = result.Meta.Codec
		resp.SampleRate = result.Meta.SampleRate
		resp.Channels = result.Meta.Channels
		resp.DurationSecs = result.Meta.Duration
		resp.BitRate = result.Meta.BitRate
	}
	writeJSON(w, http.StatusOK, resp)
}

// nextFilePart skips non-file fields and returns the first part
// carrying a filename.
func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}

// handleProgress streams progress snapshots for one upload as
// server-sent events. A stream opened before the upload handler created
// its record waits a bounded number of polls before reporting not
// found.
func (h *HTTPHandler) handleProgress(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()

	found := false
	for i := 0; i < h.maxPolls; i++ {
		if _, ok := h.tracker.Get(uploadID); ok {
			found = true
			break
		}
		// comment frame keeps the connection alive while waiting
		fmt.Fprint(w, ": waiting\n\n")
		flusher.Flush()
		select {
		case <-ctx.Done():
			return
		case <-time.After(h.pollInterval):
		}
	}
	if !found {
		fmt.Fprintf(w, "event: error\ndata: {\"error\":\"upload not found\"}\n\n")
		flusher.Flush()
		return
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		snap, ok := h.tracker.Get(uploadID)
		if !ok {
			// evicted by another observer
			return
		}

		data, err := json.Marshal(snap)
		if err != nil {
			h.logger.Error("marshal progress snapshot", zap.Error(err))
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()

		if snap.Stage.Terminal() {
			break
		}
	}

	// keep the terminal record observable for a grace period, then evict
	select {
	case <-ctx.Done():
	case <-time.After(h.terminalGrace):
	}
	h.tracker.Remove(uploadID)
}

// handleArtifact serves raw package artifacts straight from storage.
func (h *HTTPHandler) handleArtifact(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")

	data, err := h.store.GetObject(r.Context(), h.bucket, key)
	if err != nil {
		h.logger.Warn("artifact not found",
			zap.String("bucket", h.bucket), zap.String("key", key), zap.Error(err))
		http.Error(w, "object not found: "+key, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(key))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("write artifact response", zap.Error(err))
	}
}

func contentTypeFor(key string) string {
	switch {
	case strings.HasSuffix(key, ".m3u8"):
		return "application/vnd.apple.mpegurl"
	case strings.HasSuffix(key, ".m4s"):
		return "video/iso.segment"
	case strings.HasSuffix(key, ".mp4"):
		return "video/mp4"
	case strings.HasSuffix(key, ".ts"):
		return "video/mp2t"
	default:
		return "application/octet-stream"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{Success: false, Error: msg})
}
