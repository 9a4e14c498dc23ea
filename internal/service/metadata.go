package service

import (
	"context"
	"fmt"
	"time"

	"mediagate/internal/video"

	"golang.org/x/sync/singleflight"
)

// FormatSummary is the public view of a downloadable format.
type FormatSummary struct {
	Quality   string `json:"quality"`
	Container string `json:"containerId"`
	Itag      int    `json:"formatId"`
}

// Metadata is the shaped title/thumbnail/author/duration/formats tuple.
type Metadata struct {
	Title           string          `json:"title"`
	Thumbnail       string          `json:"thumbnail"`
	Author          string          `json:"author"`
	DurationSeconds int64           `json:"durationSeconds"`
	Formats         []FormatSummary `json:"formats"`
}

// sharedLookupTimeout bounds a coalesced lookup, which outlives any single
// caller's context.
const sharedLookupTimeout = 30 * time.Second

// MetadataService looks videos up against a single source, caching results
// and collapsing concurrent lookups of the same video into one upstream call.
type MetadataService struct {
	source video.Source
	cache  *InfoCache
	group  singleflight.Group
}

// NewMetadataService constructs a MetadataService. cache may be nil.
func NewMetadataService(src video.Source, cache *InfoCache) *MetadataService {
	return &MetadataService{source: src, cache: cache}
}

// Info returns the raw video information for url.
func (m *MetadataService) Info(ctx context.Context, url string) (*video.Info, error) {
	id, err := video.ValidateURL(url)
	if err != nil {
		return nil, err
	}
	if m.cache != nil {
		if info, ok := m.cache.Get(id); ok {
			return info, nil
		}
	}

	ch := m.group.DoChan(id, func() (interface{}, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLookupTimeout)
		defer cancel()
		info, err := m.source.Lookup(lctx, url)
		if err != nil {
			return nil, err
		}
		if m.cache != nil {
			m.cache.Set(id, info)
		}
		return info, nil
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("lookup %s: %w", id, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("lookup %s: %w", id, res.Err)
		}
		return res.Val.(*video.Info), nil
	}
}

// Lookup returns the shaped metadata for url. Only formats carrying both
// audio and video are listed.
func (m *MetadataService) Lookup(ctx context.Context, url string) (Metadata, error) {
	info, err := m.Info(ctx, url)
	if err != nil {
		return Metadata{}, err
	}
	md := Metadata{
		Title:           info.Title,
		Thumbnail:       info.Thumbnail(),
		Author:          info.Author,
		DurationSeconds: int64(info.Duration.Seconds()),
		Formats:         []FormatSummary{},
	}
	for _, f := range info.Formats {
		if !f.Combined() {
			continue
		}
		md.Formats = append(md.Formats, FormatSummary{
			Quality:   f.QualityLabel,
			Container: f.Container,
			Itag:      f.Itag,
		})
	}
	return md, nil
}

// Stream is a resolved direct media link.
type Stream struct {
	URL      string
	Format   video.Format
	Filename string
}

// StreamURL resolves the direct media URL of the format best matching quality.
func (m *MetadataService) StreamURL(ctx context.Context, url, quality string, audioOnly bool) (Stream, error) {
	info, err := m.Info(ctx, url)
	if err != nil {
		return Stream{}, err
	}
	f, err := SelectFormat(info.Formats, quality, audioOnly)
	if err != nil {
		return Stream{}, err
	}
	link, err := m.source.StreamURL(ctx, info, f)
	if err != nil {
		return Stream{}, fmt.Errorf("resolve %s: %w", info.ID, err)
	}
	if link == "" {
		return Stream{}, fmt.Errorf("resolve %s: %w", info.ID, ErrNoFormat)
	}
	ext := "mp4"
	if audioOnly || f.AudioOnly() {
		ext = "mp3"
	}
	return Stream{URL: link, Format: f, Filename: video.SanitizeFilename(info.Title, ext)}, nil
}

// CacheTTLSeconds is the max-age advertised for metadata responses.
func (m *MetadataService) CacheTTLSeconds() int {
	if m.cache == nil {
		return 0
	}
	return int(m.cache.TTL().Seconds())
}
