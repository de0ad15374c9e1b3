// Package validation decides whether uploaded bytes are genuinely
// playable audio of an accepted format. Cheap in-memory checks run
// first (extension, magic bytes); the expensive checks shell out to
// ffprobe and ffmpeg.
package validation

import (
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a validation failure so the HTTP boundary can pick a
// status code without inspecting reason strings.
type Kind int

const (
	// KindBadRequest covers malformed input: empty body, body too
	// short to sniff, extension/magic mismatch.
	KindBadRequest Kind = iota
	// KindUnsupported covers extensions and signatures outside the
	// accepted set.
	KindUnsupported
	// KindContent covers files that look right but violate policy or
	// fail to decode.
	KindContent
)

// Error is a validation failure with a human-readable reason.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

var allowedExtensions = map[string]struct{}{
	"mp3":  {},
	"wav":  {},
	"ogg":  {},
	"flac": {},
	"opus": {},
	"m4a":  {},
	"aac":  {},
}

func allowedList() string {
	exts := make([]string, 0, len(allowedExtensions))
	for ext := range allowedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return strings.Join(exts, ", ")
}

// SniffLen is how many leading bytes DetectMagic needs.
const SniffLen = 12

// ValidateExtension extracts the filename's extension, lowercased, and
// checks it against the accepted set.
func ValidateExtension(filename string) (string, error) {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 || idx == len(filename)-1 {
		return "", &Error{Kind: KindUnsupported, Reason: "file has no extension"}
	}

	ext := strings.ToLower(filename[idx+1:])
	if _, ok := allowedExtensions[ext]; !ok {
		return "", &Error{
			Kind:   KindUnsupported,
			Reason: fmt.Sprintf("extension '.%s' is not allowed, accepted: %s", ext, allowedList()),
		}
	}
	return ext, nil
}

// DetectMagic identifies the container format from the leading bytes.
// At least SniffLen bytes are required.
func DetectMagic(head []byte) (string, error) {
	if len(head) < SniffLen {
		return "", &Error{Kind: KindBadRequest, Reason: "file is too small to detect its format"}
	}

	switch {
	case string(head[0:4]) == "RIFF" && string(head[8:12]) == "WAVE":
		return "wav", nil
	case string(head[0:4]) == "fLaC":
		return "flac", nil
	case string(head[0:4]) == "OggS":
		return "ogg", nil
	case string(head[0:3]) == "ID3":
		return "mp3", nil
	}

	// raw MPEG frame sync: 11 set bits, layer bits tell ADTS AAC from MP3
	if head[0] == 0xFF && head[1]&0xE0 == 0xE0 {
		layerBits := head[1] & 0x06
		if layerBits == 0x00 && head[1]&0xF0 == 0xF0 {
			return "aac", nil
		}
		return "mp3", nil
	}

	if string(head[4:8]) == "ftyp" {
		return "m4a", nil
	}

	return "", &Error{
		Kind:   KindUnsupported,
		Reason: "could not identify an audio format from the file header",
	}
}

// CheckCompatibility verifies the declared extension matches the
// sniffed format. Opus in an Ogg container is the one accepted
// mismatch.
func CheckCompatibility(ext, detected string) error {
	if ext == detected {
		return nil
	}
	if ext == "opus" && detected == "ogg" {
		return nil
	}
	return &Error{
		Kind:   KindBadRequest,
		Reason: fmt.Sprintf("extension '.%s' does not match the detected format '%s'", ext, detected),
	}
}
