package hls

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/audioflow/internal/mediatool"
)

// fakeFFmpeg writes an executable shell script standing in for ffmpeg.
// The script receives the playlist path as its last argument.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func newTestTranscoder(t *testing.T, script string) (*Transcoder, string) {
	t.Helper()
	stagingRoot := t.TempDir()
	tr := NewTranscoder(TranscoderConfig{
		Runner:      mediatool.NewRunner(1),
		FFmpegPath:  fakeFFmpeg(t, script),
		Timeout:     5 * time.Second,
		StagingRoot: stagingRoot,
	})
	return tr, stagingRoot
}

func TestTranscode_Success(t *testing.T) {
	// emulate ffmpeg: create the playlist and two segments next to it
	tr, _ := newTestTranscoder(t, `
for last; do :; done
dir=$(dirname "$last")
echo "#EXTM3U" > "$last"
touch "$dir/seg_00000.m4s" "$dir/seg_00001.m4s" "$dir/init.mp4"
`)

	pkg, err := tr.Transcode(context.Background(), "input.mp3")
	require.NoError(t, err)
	defer pkg.Release()

	files, err := pkg.Files()
	require.NoError(t, err)
	require.Len(t, files, 4)

	// deterministic, sorted enumeration
	assert.Equal(t, "init.mp4", filepath.Base(files[0]))
	assert.Equal(t, "playlist.m3u8", filepath.Base(files[1]))
	assert.Equal(t, "seg_00000.m4s", filepath.Base(files[2]))
	assert.Equal(t, "seg_00001.m4s", filepath.Base(files[3]))

	data, err := os.ReadFile(pkg.PlaylistPath())
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n", string(data))
}

func TestTranscode_ToolFailureRemovesStaging(t *testing.T) {
	tr, stagingRoot := newTestTranscoder(t, `echo "encode blew up" >&2; exit 1`)

	_, err := tr.Transcode(context.Background(), "input.mp3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode blew up")

	assertEmptyDir(t, stagingRoot)
}

func TestTranscode_MissingPlaylistRemovesStaging(t *testing.T) {
	tr, stagingRoot := newTestTranscoder(t, `exit 0`)

	_, err := tr.Transcode(context.Background(), "input.mp3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "playlist")

	assertEmptyDir(t, stagingRoot)
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRelease_Idempotent(t *testing.T) {
	dir := t.TempDir()
	staging := filepath.Join(dir, "pkg")
	require.NoError(t, os.MkdirAll(staging, 0o755))

	pkg := NewPackage(staging)
	pkg.Release()
	pkg.Release()

	_, err := os.Stat(staging)
	assert.True(t, os.IsNotExist(err))
}
