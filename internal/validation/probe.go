package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/your-org/audioflow/internal/mediatool"
)

const (
	maxDurationSecs = 3600.0
	minSampleRate   = 8000
	maxSampleRate   = 192000
	maxChannels     = 8

	stderrLimit = 500
)

// Result holds the metadata ffprobe extracted from the first audio
// stream. The probe may omit any field, absent values stay nil.
type Result struct {
	Format     string   `json:"format,omitempty"`
	Codec      string   `json:"codec,omitempty"`
	SampleRate *int     `json:"sample_rate,omitempty"`
	Channels   *int     `json:"channels,omitempty"`
	Duration   *float64 `json:"duration_secs,omitempty"`
	BitRate    *int64   `json:"bit_rate,omitempty"`
}

type probeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	SampleRate string `json:"sample_rate"`
	Channels   *int   `json:"channels"`
	Duration   string `json:"duration"`
	BitRate    string `json:"bit_rate"`
}

type probeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	BitRate    string `json:"bit_rate"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  *probeFormat  `json:"format"`
}

// Prober runs the external deep checks through the shared tool pool.
type Prober struct {
	runner        *mediatool.Runner
	ffprobePath   string
	ffmpegPath    string
	probeTimeout  time.Duration
	decodeTimeout time.Duration
}

type ProberConfig struct {
	Runner        *mediatool.Runner
	FFprobePath   string
	FFmpegPath    string
	ProbeTimeout  time.Duration
	DecodeTimeout time.Duration
}

func NewProber(cfg ProberConfig) *Prober {
	return &Prober{
		runner:        cfg.Runner,
		ffprobePath:   cfg.FFprobePath,
		ffmpegPath:    cfg.FFmpegPath,
		probeTimeout:  cfg.ProbeTimeout,
		decodeTimeout: cfg.DecodeTimeout,
	}
}

// Probe inspects path with ffprobe and enforces the format policy:
// duration in (0, 3600] seconds, sample rate in [8000, 192000] Hz,
// channels in [1, 8]. Bounds apply only to fields the probe reported.
func (p *Prober) Probe(ctx context.Context, path string) (*Result, error) {
	res, err := p.runner.Run(ctx, p.probeTimeout, p.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-select_streams", "a:0",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("run ffprobe: %w", err)
	}
	if !res.Ok() {
		return nil, &Error{Kind: KindContent, Reason: "ffprobe could not read the file: " + toolStderr(res.Stderr)}
	}

	return parseProbe(res.Stdout)
}

// parseProbe extracts the first audio stream's metadata from raw
// ffprobe JSON and enforces the policy bounds.
func parseProbe(stdout []byte) (*Result, error) {
	var probe probeOutput
	if err := json.Unmarshal(stdout, &probe); err != nil {
		return nil, &Error{Kind: KindContent, Reason: "could not parse ffprobe output: " + err.Error()}
	}

	var audio *probeStream
	for i := range probe.Streams {
		if probe.Streams[i].CodecType == "audio" {
			audio = &probe.Streams[i]
			break
		}
	}
	if audio == nil {
		return nil, &Error{Kind: KindContent, Reason: "file contains no audio stream"}
	}

	out := &Result{Codec: audio.CodecName}
	if probe.Format != nil {
		out.Format = probe.Format.FormatName
	}

	if sr, err := strconv.Atoi(audio.SampleRate); err == nil {
		out.SampleRate = &sr
	}
	out.Channels = audio.Channels

	// prefer stream-level duration/bit-rate, fall back to container
	out.Duration = parseFloat(audio.Duration)
	if out.Duration == nil && probe.Format != nil {
		out.Duration = parseFloat(probe.Format.Duration)
	}
	out.BitRate = parseInt64(audio.BitRate)
	if out.BitRate == nil && probe.Format != nil {
		out.BitRate = parseInt64(probe.Format.BitRate)
	}

	if err := checkPolicy(out); err != nil {
		return nil, err
	}
	return out, nil
}

func checkPolicy(r *Result) error {
	if r.Duration != nil {
		if *r.Duration <= 0 {
			return &Error{Kind: KindContent, Reason: "audio has zero or negative duration"}
		}
		if *r.Duration > maxDurationSecs {
			return &Error{
				Kind:   KindContent,
				Reason: fmt.Sprintf("audio is too long: %.0f s (maximum: %.0f s)", *r.Duration, maxDurationSecs),
			}
		}
	}

	if r.SampleRate != nil {
		if *r.SampleRate < minSampleRate || *r.SampleRate > maxSampleRate {
			return &Error{
				Kind:   KindContent,
				Reason: fmt.Sprintf("invalid sample rate: %d Hz (allowed: %d-%d Hz)", *r.SampleRate, minSampleRate, maxSampleRate),
			}
		}
	}

	if r.Channels != nil {
		if *r.Channels == 0 || *r.Channels > maxChannels {
			return &Error{
				Kind:   KindContent,
				Reason: fmt.Sprintf("invalid channel count: %d (allowed: 1-%d)", *r.Channels, maxChannels),
			}
		}
	}

	return nil
}

// DecodeCheck runs a full decode pass discarding all output. Files that
// pass header inspection but are corrupt in the body surface here as
// decoder errors on stderr or a non-zero exit.
func (p *Prober) DecodeCheck(ctx context.Context, path string) error {
	res, err := p.runner.Run(ctx, p.decodeTimeout, p.ffmpegPath,
		"-v", "error",
		"-i", path,
		"-f", "null", "-",
	)
	if err != nil {
		return fmt.Errorf("run ffmpeg decode check: %w", err)
	}

	stderr := strings.TrimSpace(string(res.Stderr))
	if !res.Ok() || stderr != "" {
		reason := fmt.Sprintf("ffmpeg exited with code %d", res.ExitCode)
		if stderr != "" {
			reason = "decode errors: " + truncate(stderr, stderrLimit)
		}
		return &Error{Kind: KindContent, Reason: reason}
	}
	return nil
}

func toolStderr(stderr []byte) string {
	s := strings.TrimSpace(string(stderr))
	if s == "" {
		return "unknown error"
	}
	return truncate(s, stderrLimit)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseInt64(s string) *int64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}
