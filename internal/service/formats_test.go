package service

import (
	"testing"

	"mediagate/internal/video"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFormats() []video.Format {
	return []video.Format{
		{Itag: 18, QualityLabel: "360p", Container: "mp4", Height: 360, Bitrate: 500_000, HasAudio: true, HasVideo: true},
		{Itag: 22, QualityLabel: "720p", Container: "mp4", Height: 720, Bitrate: 1_500_000, HasAudio: true, HasVideo: true},
		{Itag: 43, QualityLabel: "360p", Container: "webm", Height: 360, Bitrate: 500_000, HasAudio: true, HasVideo: true},
		{Itag: 137, QualityLabel: "1080p", Container: "mp4", Height: 1080, Bitrate: 4_000_000, HasVideo: true},
		{Itag: 140, Container: "mp4", Bitrate: 128_000, HasAudio: true},
		{Itag: 251, Container: "webm", Bitrate: 160_000, HasAudio: true},
		{Itag: 139, Container: "mp4", Bitrate: 48_000, HasAudio: true},
	}
}

func TestSelectFormat(t *testing.T) {
	tests := []struct {
		name      string
		quality   string
		audioOnly bool
		wantItag  int
	}{
		{"default is highest combined", "", false, 22},
		{"highest combined", "highest", false, 22},
		{"lowest combined", "lowest", false, 43},
		{"highestaudio", "highestaudio", false, 251},
		{"lowestaudio", "lowestaudio", false, 139},
		{"audio flag with highest", "highest", true, 251},
		{"audio flag with lowest", "lowest", true, 139},
		{"highestvideo includes video-only", "highestvideo", false, 137},
		{"exact itag", "18", false, 18},
		{"exact audio itag", "140", true, 140},
		{"itag outside candidates approximates by height", "137", false, 22},
		{"unknown itag falls back to best", "9999", false, 22},
		{"exact label", "720p", false, 22},
		{"missing label picks closest height", "480p", false, 18},
		{"label below range", "144p", false, 18},
		{"unknown selector falls back to best", "weird", false, 22},
		{"case insensitive", "HighestAudio", false, 251},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := SelectFormat(sampleFormats(), tt.quality, tt.audioOnly)
			require.NoError(t, err)
			assert.Equal(t, tt.wantItag, f.Itag)
		})
	}
}

func TestSelectFormatAudioFallback(t *testing.T) {
	// no audio-only formats: degrade to the closest available instead of failing
	formats := []video.Format{
		{Itag: 18, Container: "mp4", Height: 360, Bitrate: 500_000, HasAudio: true, HasVideo: true},
		{Itag: 22, Container: "mp4", Height: 720, Bitrate: 1_500_000, HasAudio: true, HasVideo: true},
	}
	f, err := SelectFormat(formats, "highestaudio", false)
	require.NoError(t, err)
	assert.Equal(t, 22, f.Itag)
}

func TestSelectFormatCombinedFallback(t *testing.T) {
	formats := []video.Format{
		{Itag: 137, Container: "mp4", Height: 1080, HasVideo: true},
		{Itag: 140, Container: "mp4", Bitrate: 128_000, HasAudio: true},
	}
	f, err := SelectFormat(formats, "highest", false)
	require.NoError(t, err)
	assert.Equal(t, 137, f.Itag)
}

func TestSelectFormatEmpty(t *testing.T) {
	_, err := SelectFormat(nil, "highest", false)
	assert.ErrorIs(t, err, ErrNoFormat)
}

func TestSelectFormatDoesNotReorderInput(t *testing.T) {
	in := sampleFormats()
	SelectFormat(in, "highest", false)
	assert.Equal(t, 18, in[0].Itag)
}

func TestSelectFormatDeterministic(t *testing.T) {
	first, _ := SelectFormat(sampleFormats(), "360p", false)
	for i := 0; i < 10; i++ {
		again, _ := SelectFormat(sampleFormats(), "360p", false)
		assert.Equal(t, first.Itag, again.Itag)
	}
	assert.Equal(t, 18, first.Itag)
}
