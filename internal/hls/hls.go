// Package hls converts validated audio into a segmented HLS package in
// an isolated staging directory.
package hls

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/audioflow/internal/mediatool"
)

// Artifact names shared with the storage layout and the deletion
// consumer.
const (
	PlaylistName    = "playlist.m3u8"
	InitSegmentName = "init.mp4"
	SegmentPattern  = "seg_%05d.m4s"
)

// Package is one transcoder output: a staging directory holding the
// playlist and its media segments. The Transcoder owns the directory
// until the caller releases it.
type Package struct {
	dir string
}

// NewPackage wraps an existing staging directory as a Package.
func NewPackage(dir string) *Package {
	return &Package{dir: dir}
}

// Dir returns the staging directory path.
func (p *Package) Dir() string {
	return p.dir
}

// PlaylistPath returns the absolute path of the playlist file.
func (p *Package) PlaylistPath() string {
	return filepath.Join(p.dir, PlaylistName)
}

// Files enumerates the package's artifact paths, sorted, so upload
// order is deterministic.
func (p *Package) Files() ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("read staging dir: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			files = append(files, filepath.Join(p.dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Release deletes the staging directory. Safe to call more than once.
func (p *Package) Release() {
	_ = os.RemoveAll(p.dir)
}

// Transcoder drives ffmpeg to produce fMP4 HLS packages with a uniform
// target encoding regardless of source format.
type Transcoder struct {
	runner      *mediatool.Runner
	ffmpegPath  string
	timeout     time.Duration
	stagingRoot string
}

type TranscoderConfig struct {
	Runner     *mediatool.Runner
	FFmpegPath string
	Timeout    time.Duration

	// StagingRoot defaults to the system temp directory.
	StagingRoot string
}

func NewTranscoder(cfg TranscoderConfig) *Transcoder {
	root := cfg.StagingRoot
	if root == "" {
		root = os.TempDir()
	}
	return &Transcoder{
		runner:      cfg.Runner,
		ffmpegPath:  cfg.FFmpegPath,
		timeout:     cfg.Timeout,
		stagingRoot: root,
	}
}

// Transcode re-encodes inputPath to AAC 128k stereo 48 kHz and packages
// it as a VOD playlist with 6 second fMP4 segments. The staging
// directory is removed before any error is returned.
func (t *Transcoder) Transcode(ctx context.Context, inputPath string) (*Package, error) {
	stagingDir := filepath.Join(t.stagingRoot, "hls_"+uuid.NewString())
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	playlistPath := filepath.Join(stagingDir, PlaylistName)
	segmentPath := filepath.Join(stagingDir, SegmentPattern)

	res, err := t.runner.Run(ctx, t.timeout, t.ffmpegPath,
		"-i", inputPath,
		"-v", "error",
		"-c:a", "aac",
		"-b:a", "128k",
		"-ac", "2",
		"-ar", "48000",
		"-f", "hls",
		"-hls_time", "6",
		"-hls_playlist_type", "vod",
		"-hls_segment_type", "fmp4",
		"-hls_segment_filename", segmentPath,
		playlistPath,
	)
	if err != nil {
		_ = os.RemoveAll(stagingDir)
		return nil, fmt.Errorf("run ffmpeg hls: %w", err)
	}
	if !res.Ok() {
		_ = os.RemoveAll(stagingDir)
		stderr := strings.TrimSpace(string(res.Stderr))
		if stderr == "" {
			stderr = fmt.Sprintf("exit code %d", res.ExitCode)
		}
		return nil, fmt.Errorf("ffmpeg hls conversion failed: %s", stderr)
	}

	if _, err := os.Stat(playlistPath); err != nil {
		_ = os.RemoveAll(stagingDir)
		return nil, fmt.Errorf("ffmpeg did not produce a playlist: %w", err)
	}

	return &Package{dir: stagingDir}, nil
}
