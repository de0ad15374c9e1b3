package validation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probeJSON(streamFields, formatFields string) []byte {
	return []byte(fmt.Sprintf(`{
		"streams": [{"codec_type": "audio"%s}],
		"format": {"format_name": "mp3"%s}
	}`, streamFields, formatFields))
}

func TestParseProbe_StreamLevelPreferred(t *testing.T) {
	out := probeJSON(
		`, "codec_name": "mp3", "sample_rate": "44100", "channels": 2, "duration": "120.5", "bit_rate": "192000"`,
		`, "duration": "999", "bit_rate": "1"`,
	)

	res, err := parseProbe(out)
	require.NoError(t, err)
	assert.Equal(t, "mp3", res.Format)
	assert.Equal(t, "mp3", res.Codec)
	require.NotNil(t, res.SampleRate)
	assert.Equal(t, 44100, *res.SampleRate)
	require.NotNil(t, res.Channels)
	assert.Equal(t, 2, *res.Channels)
	require.NotNil(t, res.Duration)
	assert.Equal(t, 120.5, *res.Duration)
	require.NotNil(t, res.BitRate)
	assert.Equal(t, int64(192000), *res.BitRate)
}

func TestParseProbe_ContainerFallback(t *testing.T) {
	out := probeJSON(
		`, "codec_name": "vorbis"`,
		`, "duration": "42.0", "bit_rate": "96000"`,
	)

	res, err := parseProbe(out)
	require.NoError(t, err)
	require.NotNil(t, res.Duration)
	assert.Equal(t, 42.0, *res.Duration)
	require.NotNil(t, res.BitRate)
	assert.Equal(t, int64(96000), *res.BitRate)
	assert.Nil(t, res.SampleRate)
	assert.Nil(t, res.Channels)
}

func TestParseProbe_DurationBounds(t *testing.T) {
	reject := func(dur string) {
		_, err := parseProbe(probeJSON(fmt.Sprintf(`, "duration": %q`, dur), ""))
		require.Error(t, err, dur)
		assert.Equal(t, KindContent, err.(*Error).Kind, dur)
	}

	reject("0")
	reject("-1")
	reject("3601")

	// inclusive upper bound
	res, err := parseProbe(probeJSON(`, "duration": "3600"`, ""))
	require.NoError(t, err)
	assert.Equal(t, 3600.0, *res.Duration)
}

func TestParseProbe_SampleRateBounds(t *testing.T) {
	_, err := parseProbe(probeJSON(`, "sample_rate": "7999"`, ""))
	require.Error(t, err)

	_, err = parseProbe(probeJSON(`, "sample_rate": "192001"`, ""))
	require.Error(t, err)

	_, err = parseProbe(probeJSON(`, "sample_rate": "8000"`, ""))
	assert.NoError(t, err)

	_, err = parseProbe(probeJSON(`, "sample_rate": "192000"`, ""))
	assert.NoError(t, err)
}

func TestParseProbe_ChannelBounds(t *testing.T) {
	_, err := parseProbe(probeJSON(`, "channels": 0`, ""))
	require.Error(t, err)

	_, err = parseProbe(probeJSON(`, "channels": 9`, ""))
	require.Error(t, err)

	_, err = parseProbe(probeJSON(`, "channels": 8`, ""))
	assert.NoError(t, err)
}

func TestParseProbe_NoAudioStream(t *testing.T) {
	_, err := parseProbe([]byte(`{"streams": [{"codec_type": "video"}], "format": {}}`))
	require.Error(t, err)
	assert.Equal(t, KindContent, err.(*Error).Kind)

	_, err = parseProbe([]byte(`{"format": {}}`))
	require.Error(t, err)
}

func TestParseProbe_Unparseable(t *testing.T) {
	_, err := parseProbe([]byte("not json"))
	require.Error(t, err)
	assert.Equal(t, KindContent, err.(*Error).Kind)
}

func TestParseProbe_AbsentFieldsAccepted(t *testing.T) {
	res, err := parseProbe(probeJSON("", ""))
	require.NoError(t, err)
	assert.Nil(t, res.Duration)
	assert.Nil(t, res.SampleRate)
	assert.Nil(t, res.Channels)
	assert.Nil(t, res.BitRate)
}
