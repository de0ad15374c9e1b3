package upload

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/your-org/audioflow/internal/hls"
	"github.com/your-org/audioflow/internal/progress"
	"github.com/your-org/audioflow/internal/validation"
	"github.com/your-org/audioflow/pkg/storage/objectstore"
)

const readChunkSize = 32 * 1024

// Error is the single failure shape crossing the service boundary. The
// HTTP layer maps Status directly; Message is safe to show the caller.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func failWith(status int, message string, cause error) *Error {
	return &Error{Status: status, Message: message, Err: cause}
}

// translate folds any pipeline failure into an *Error. Validation
// failures keep their taxonomy; everything else is an internal error.
func translate(err error) *Error {
	var uerr *Error
	if errors.As(err, &uerr) {
		return uerr
	}

	var verr *validation.Error
	if errors.As(err, &verr) {
		switch verr.Kind {
		case validation.KindUnsupported:
			return failWith(http.StatusUnsupportedMediaType, verr.Reason, err)
		case validation.KindContent:
			return failWith(http.StatusUnprocessableEntity, verr.Reason, err)
		default:
			return failWith(http.StatusBadRequest, verr.Reason, err)
		}
	}

	return failWith(http.StatusInternalServerError, err.Error(), err)
}

type prober interface {
	Probe(ctx context.Context, path string) (*validation.Result, error)
	DecodeCheck(ctx context.Context, path string) error
}

type transcoder interface {
	Transcode(ctx context.Context, inputPath string) (*hls.Package, error)
}

type publisher interface {
	StartUpload(ctx context.Context, uploadID, filename string)
	Uploaded(ctx context.Context, uploadID, filename string, meta *validation.Result, sizeBytes int64, hlsPath string)
	UploadError(ctx context.Context, uploadID, errorMessage string)
}

// Service orchestrates the upload-to-publish pipeline: streaming
// ingestion, validation, transcoding, storage upload, progress updates,
// and lifecycle events.
type Service struct {
	store      objectstore.Client
	prober     prober
	transcoder transcoder
	tracker    *progress.Tracker
	publisher  publisher
	logger     *zap.Logger
	bucket     string
	maxBytes   int64
}

type Params struct {
	Store      objectstore.Client
	Prober     prober
	Transcoder transcoder
	Tracker    *progress.Tracker
	Publisher  publisher
	Logger     *zap.Logger
	HLSBucket  string
	MaxBytes   int64
}

// NewService constructs the ingestion Service.
func NewService(p Params) *Service {
	return &Service{
		store:      p.Store,
		prober:     p.Prober,
		transcoder: p.Transcoder,
		tracker:    p.Tracker,
		publisher:  p.Publisher,
		logger:     p.Logger,
		bucket:     p.HLSBucket,
		maxBytes:   p.MaxBytes,
	}
}

// Request is one inbound upload: the multipart field's byte stream plus
// its declared identity.
type Request struct {
	UploadID      string
	Filename      string
	Body          io.Reader
	TotalExpected int64
}

// Result carries everything the success response and the uploaded event
// need.
type Result struct {
	Filename  string
	Meta      *validation.Result
	SizeBytes int64
	HLSPath   string
}

// Process runs the full pipeline for one upload. On any failure the
// progress record is marked Error, a media.error event is published,
// and every staged resource is released. The returned error is always
// an *Error.
func (s *Service) Process(ctx context.Context, req Request) (*Result, error) {
	ctx, span := otel.Tracer("audioflow/upload").Start(ctx, "upload.process")
	defer span.End()
	span.SetAttributes(
		attribute.String("upload.id", req.UploadID),
		attribute.String("upload.filename", req.Filename),
	)

	// the record must exist before the first payload byte so a progress
	// observer can never race its creation
	s.tracker.Start(req.UploadID)
	if req.TotalExpected > 0 {
		s.tracker.SetTotal(req.UploadID, req.TotalExpected)
	}
	s.publisher.StartUpload(ctx, req.UploadID, req.Filename)

	result, err := s.run(ctx, req)
	if err != nil {
		uerr := translate(err)
		s.logger.Warn("upload failed",
			zap.String("upload_id", req.UploadID),
			zap.String("filename", req.Filename),
			zap.Int("status", uerr.Status),
			zap.Error(err))
		s.tracker.Fail(req.UploadID, uerr.Message)
		s.publisher.UploadError(ctx, req.UploadID, uerr.Message)
		span.RecordError(err)
		return nil, uerr
	}

	s.tracker.Done(req.UploadID, "")
	s.publisher.Uploaded(ctx, req.UploadID, result.Filename, result.Meta, result.SizeBytes, result.HLSPath)
	s.logger.Info("upload complete",
		zap.String("upload_id", req.UploadID),
		zap.String("hls_path", result.HLSPath),
		zap.Int64("size_bytes", result.SizeBytes))
	return result, nil
}

func (s *Service) run(ctx context.Context, req Request) (*Result, error) {
	ext, err := validation.ValidateExtension(req.Filename)
	if err != nil {
		return nil, err
	}

	tmpPath, size, err := s.receive(ctx, req, ext)
	if tmpPath != "" {
		defer os.Remove(tmpPath)
	}
	if err != nil {
		return nil, err
	}

	s.tracker.SetStage(req.UploadID, progress.StageValidating)
	meta, err := s.prober.Probe(ctx, tmpPath)
	if err != nil {
		return nil, err
	}
	if err := s.prober.DecodeCheck(ctx, tmpPath); err != nil {
		return nil, err
	}

	s.tracker.SetStage(req.UploadID, progress.StageConverting)
	pkg, err := s.transcoder.Transcode(ctx, tmpPath)
	if err != nil {
		return nil, err
	}
	defer pkg.Release()

	s.tracker.SetStage(req.UploadID, progress.StageUploading)
	hlsPath, err := s.publish(ctx, pkg, req.Filename)
	if err != nil {
		return nil, err
	}

	return &Result{
		Filename:  req.Filename,
		Meta:      meta,
		SizeBytes: size,
		HLSPath:   hlsPath,
	}, nil
}

// receive streams the request body into a private staging file,
// sniffing the magic bytes as soon as twelve are buffered and aborting
// on the size cap. The staging file path is returned even on error so
// the caller can remove it.
func (s *Service) receive(ctx context.Context, req Request, ext string) (string, int64, error) {
	tmp, err := os.CreateTemp("", "upload-*."+ext)
	if err != nil {
		return "", 0, failWith(http.StatusInternalServerError, "could not create staging file: "+err.Error(), err)
	}
	tmpPath := tmp.Name()
	writer := bufio.NewWriter(tmp)

	var (
		total        int64
		magicChecked bool
		head         []byte
		buf          = make([]byte, readChunkSize)
	)

	for {
		n, readErr := req.Body.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			total += int64(n)

			if total > s.maxBytes {
				tmp.Close()
				return tmpPath, total, failWith(http.StatusRequestEntityTooLarge,
					fmt.Sprintf("file is too large: %d MB (maximum: %d MB)",
						total/(1024*1024), s.maxBytes/(1024*1024)), nil)
			}

			if !magicChecked {
				head = append(head, chunk...)
				if len(head) >= validation.SniffLen {
					detected, err := validation.DetectMagic(head)
					if err != nil {
						tmp.Close()
						return tmpPath, total, err
					}
					if err := validation.CheckCompatibility(ext, detected); err != nil {
						tmp.Close()
						return tmpPath, total, err
					}
					magicChecked = true
					head = nil
				}
			}

			if _, err := writer.Write(chunk); err != nil {
				tmp.Close()
				return tmpPath, total, failWith(http.StatusInternalServerError,
					"could not write staging file: "+err.Error(), err)
			}

			s.tracker.AddBytes(req.UploadID, int64(n))
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			tmp.Close()
			return tmpPath, total, failWith(http.StatusBadRequest,
				"error reading file data: "+readErr.Error(), readErr)
		}
	}

	if err := writer.Flush(); err != nil {
		tmp.Close()
		return tmpPath, total, failWith(http.StatusInternalServerError,
			"could not flush staging file: "+err.Error(), err)
	}
	if err := tmp.Close(); err != nil {
		return tmpPath, total, failWith(http.StatusInternalServerError,
			"could not persist staging file: "+err.Error(), err)
	}

	if total == 0 {
		return tmpPath, total, failWith(http.StatusBadRequest, "file is empty", nil)
	}
	if !magicChecked {
		return tmpPath, total, failWith(http.StatusBadRequest,
			"file is too small to detect its format", nil)
	}

	s.logger.Info("file received",
		zap.String("upload_id", req.UploadID),
		zap.String("filename", req.Filename),
		zap.Int64("size_bytes", total))
	return tmpPath, total, nil
}

// publish uploads every package artifact under a fresh stem/uuid prefix
// and returns the playlist's full storage path.
func (s *Service) publish(ctx context.Context, pkg *hls.Package, filename string) (string, error) {
	prefix := fileStem(filename) + "/" + uuid.NewString()

	if err := s.store.EnsureBucket(ctx, s.bucket); err != nil {
		return "", fmt.Errorf("ensure bucket %s: %w", s.bucket, err)
	}

	files, err := pkg.Files()
	if err != nil {
		return "", err
	}

	if err := objectstore.UploadAll(ctx, s.store, s.bucket, prefix, files); err != nil {
		return "", fmt.Errorf("upload hls package: %w", err)
	}

	return s.bucket + "/" + prefix + "/" + hls.PlaylistName, nil
}

func fileStem(filename string) string {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." {
		return "audio"
	}
	return stem
}
