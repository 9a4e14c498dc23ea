package video

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/kkdai/youtube/v2"
)

// YouTubeSource reads video information straight from YouTube.
type YouTubeSource struct {
	client *youtube.Client
}

// NewYouTubeSource returns a Source using httpClient for every upstream call.
func NewYouTubeSource(httpClient *http.Client) *YouTubeSource {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &YouTubeSource{client: &youtube.Client{HTTPClient: httpClient}}
}

func (s *YouTubeSource) Lookup(ctx context.Context, url string) (*Info, error) {
	if _, err := ValidateURL(url); err != nil {
		return nil, err
	}
	v, err := s.client.GetVideoContext(ctx, url)
	if err != nil {
		return nil, classify(err)
	}
	return convert(v), nil
}

func (s *YouTubeSource) StreamURL(ctx context.Context, info *Info, f Format) (string, error) {
	v, ok := info.native.(*youtube.Video)
	if !ok || v == nil {
		if f.URL != "" {
			return f.URL, nil
		}
		return "", fmt.Errorf("video %s: no stream handle", info.ID)
	}
	for i := range v.Formats {
		if v.Formats[i].ItagNo != f.Itag {
			continue
		}
		u, err := s.client.GetStreamURLContext(ctx, v, &v.Formats[i])
		if err != nil {
			return "", fmt.Errorf("stream url for itag %d: %w", f.Itag, classify(err))
		}
		return u, nil
	}
	return "", fmt.Errorf("video %s: itag %d not found", info.ID, f.Itag)
}

func convert(v *youtube.Video) *Info {
	info := &Info{
		ID:       v.ID,
		Title:    v.Title,
		Author:   v.Author,
		Duration: v.Duration,
		native:   v,
	}
	for _, t := range v.Thumbnails {
		info.Thumbnails = append(info.Thumbnails, t.URL)
	}
	for _, yf := range v.Formats {
		bitrate := yf.AverageBitrate
		if bitrate == 0 {
			bitrate = yf.Bitrate
		}
		info.Formats = append(info.Formats, Format{
			Itag:         yf.ItagNo,
			QualityLabel: yf.QualityLabel,
			MimeType:     yf.MimeType,
			Container:    ContainerOf(yf.MimeType),
			Height:       yf.Height,
			Bitrate:      bitrate,
			HasAudio:     yf.AudioChannels > 0,
			HasVideo:     strings.HasPrefix(yf.MimeType, "video/"),
			URL:          yf.URL,
		})
	}
	return info
}

// classify maps upstream failures the caller can act on to ErrUnavailable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unavailable"),
		strings.Contains(msg, "private"),
		strings.Contains(msg, "restricted"),
		strings.Contains(msg, "sign in"),
		strings.Contains(msg, "login required"):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
