// Package video describes videos hosted on YouTube and resolves their media
// streams.
package video

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrInvalidURL is returned for locators that are not a recognised video URL.
	ErrInvalidURL = errors.New("invalid YouTube URL")
	// ErrUnavailable is returned when the video is private, removed or age restricted.
	ErrUnavailable = errors.New("video is unavailable")
)

// Info is what the source knows about one video.
type Info struct {
	ID         string
	Title      string
	Author     string
	Duration   time.Duration
	Thumbnails []string // smallest first
	Formats    []Format

	native any // source-specific handle used by StreamURL
}

// Thumbnail returns the largest thumbnail URL, or "" when there is none.
func (i *Info) Thumbnail() string {
	if len(i.Thumbnails) == 0 {
		return ""
	}
	return i.Thumbnails[len(i.Thumbnails)-1]
}

// Format is one encoding of a video.
type Format struct {
	Itag         int
	QualityLabel string // "720p", empty for audio-only
	MimeType     string
	Container    string // "mp4", "webm", ...
	Height       int
	Bitrate      int
	HasAudio     bool
	HasVideo     bool
	URL          string // may be empty until resolved by StreamURL
}

// AudioOnly reports whether the format carries no video track.
func (f Format) AudioOnly() bool { return f.HasAudio && !f.HasVideo }

// Combined reports whether the format carries both audio and video.
func (f Format) Combined() bool { return f.HasAudio && f.HasVideo }

// Source looks up video information and resolves direct media URLs.
type Source interface {
	Lookup(ctx context.Context, url string) (*Info, error)
	StreamURL(ctx context.Context, info *Info, f Format) (string, error)
}

// ContainerOf extracts the container from a MIME type such as
// `video/mp4; codecs="avc1.42001E, mp4a.40.2"`.
func ContainerOf(mimeType string) string {
	mt := mimeType
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	if i := strings.IndexByte(mt, '/'); i >= 0 {
		return strings.TrimSpace(mt[i+1:])
	}
	return ""
}

var unsafeFilename = regexp.MustCompile(`[^\w\s]`)

// SanitizeFilename strips everything but word characters and whitespace from
// title and appends ext.
func SanitizeFilename(title, ext string) string {
	name := strings.TrimSpace(unsafeFilename.ReplaceAllString(title, ""))
	if name == "" {
		name = "video"
	}
	return name + "." + ext
}
