package cleanup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/audioflow/pkg/storage/objectstore"
)

const testBucket = "audio-hls"

type queueSource struct {
	messages []kafkago.Message
	err      error
}

func (q *queueSource) Fetch(ctx context.Context) (kafkago.Message, error) {
	if len(q.messages) == 0 {
		if q.err != nil {
			return kafkago.Message{}, q.err
		}
		return kafkago.Message{}, context.Canceled
	}
	msg := q.messages[0]
	q.messages = q.messages[1:]
	return msg, nil
}

func newTestConsumer(t *testing.T, source messageSource) (*Consumer, objectstore.Client, string) {
	t.Helper()
	root := t.TempDir()
	store, err := objectstore.New(objectstore.Config{Provider: "fs", FSRoot: root})
	require.NoError(t, err)

	c := NewConsumer(Params{
		Source: source,
		Store:  store,
		Bucket: testBucket,
		Logger: zap.NewNop(),
	})
	return c, store, root
}

func seed(t *testing.T, root, key string) {
	t.Helper()
	path := filepath.Join(root, testBucket, filepath.FromSlash(key))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func exists(root, key string) bool {
	_, err := os.Stat(filepath.Join(root, testBucket, filepath.FromSlash(key)))
	return err == nil
}

func TestHandleDeleted_StopsAtFirstGap(t *testing.T) {
	c, _, root := newTestConsumer(t, &queueSource{})

	seed(t, root, "song/abc-123/playlist.m3u8")
	seed(t, root, "song/abc-123/init.mp4")
	seed(t, root, "song/abc-123/seg_00000.m4s")
	seed(t, root, "song/abc-123/seg_00001.m4s")
	// gap at index 2, a later segment must survive
	seed(t, root, "song/abc-123/seg_00003.m4s")

	c.handleMessage(context.Background(), []byte(
		`{"event_type":"deleted","podcast_id":"p1","hls_path":"audio-hls/song/abc-123/playlist.m3u8","timestamp":"t"}`,
	))

	assert.False(t, exists(root, "song/abc-123/playlist.m3u8"))
	assert.False(t, exists(root, "song/abc-123/init.mp4"))
	assert.False(t, exists(root, "song/abc-123/seg_00000.m4s"))
	assert.False(t, exists(root, "song/abc-123/seg_00001.m4s"))
	assert.True(t, exists(root, "song/abc-123/seg_00003.m4s"))
}

func TestHandleDeleted_MissingInitTolerated(t *testing.T) {
	c, _, root := newTestConsumer(t, &queueSource{})

	seed(t, root, "a/b/playlist.m3u8")
	seed(t, root, "a/b/seg_00000.m4s")

	c.handleMessage(context.Background(), []byte(
		`{"event_type":"deleted","podcast_id":"p1","hls_path":"audio-hls/a/b/playlist.m3u8","timestamp":"t"}`,
	))

	assert.False(t, exists(root, "a/b/playlist.m3u8"))
	assert.False(t, exists(root, "a/b/seg_00000.m4s"))
}

func TestDerivePrefix(t *testing.T) {
	c, _, _ := newTestConsumer(t, &queueSource{})

	assert.Equal(t, "song/abc-123", c.derivePrefix("audio-hls/song/abc-123/playlist.m3u8"))
	assert.Equal(t, "song/abc-123", c.derivePrefix("song/abc-123/playlist.m3u8"))
	assert.Equal(t, "playlist.m3u8", c.derivePrefix("playlist.m3u8"))
}

func TestMalformedMessagesAreSkipped(t *testing.T) {
	c, _, root := newTestConsumer(t, &queueSource{})
	seed(t, root, "a/b/playlist.m3u8")

	ctx := context.Background()
	c.handleMessage(ctx, nil)
	c.handleMessage(ctx, []byte("not json"))
	c.handleMessage(ctx, []byte(`{"event_type":"vanished","podcast_id":"p1"}`))
	c.handleMessage(ctx, []byte(`{"event_type":"deleted","podcast_id":"p1"}`)) // no hls_path
	c.handleMessage(ctx, []byte(`{"event_type":"created","podcast_id":"p1","title":"hello"}`))
	c.handleMessage(ctx, []byte(`{"event_type":"updated","podcast_id":"p1","title":"hello"}`))

	// nothing deleted
	assert.True(t, exists(root, "a/b/playlist.m3u8"))
}

func TestRun_ProcessesUntilTransportFailure(t *testing.T) {
	transportErr := errors.New("broker gone")
	source := &queueSource{
		messages: []kafkago.Message{
			{Value: []byte("garbage")},
			{Value: []byte(`{"event_type":"deleted","podcast_id":"p1","hls_path":"audio-hls/a/b/playlist.m3u8"}`)},
		},
		err: transportErr,
	}
	c, _, root := newTestConsumer(t, source)
	seed(t, root, "a/b/playlist.m3u8")

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, transportErr)

	// the garbage message did not stop the valid one from processing
	assert.False(t, exists(root, "a/b/playlist.m3u8"))
}

func TestRun_ContextCancelEndsCleanly(t *testing.T) {
	c, _, _ := newTestConsumer(t, &queueSource{})
	assert.NoError(t, c.Run(context.Background()))
}
