package service

import (
	"sort"
	"strconv"
	"strings"

	"mediagate/internal/video"
)

// Quality selectors accepted by SelectFormat besides itags and labels.
const (
	QualityHighest      = "highest"
	QualityLowest       = "lowest"
	QualityHighestAudio = "highestaudio"
	QualityLowestAudio  = "lowestaudio"
	QualityHighestVideo = "highestvideo"
)

// IsAudioSelector reports whether quality asks for an audio-only format.
func IsAudioSelector(quality string) bool {
	q := strings.ToLower(strings.TrimSpace(quality))
	return q == QualityHighestAudio || q == QualityLowestAudio
}

// SelectFormat picks the format best matching quality. With audioOnly the
// candidates are audio-only formats, otherwise formats carrying both audio and
// video. When no candidate exists every format is considered instead, and a
// selector with no exact match falls back to the closest option. Only an empty
// format list is an error.
func SelectFormat(formats []video.Format, quality string, audioOnly bool) (video.Format, error) {
	if len(formats) == 0 {
		return video.Format{}, ErrNoFormat
	}
	q := strings.ToLower(strings.TrimSpace(quality))
	if q == "" {
		q = QualityHighest
	}
	audioOnly = audioOnly || IsAudioSelector(q)

	var candidates []video.Format
	for _, f := range formats {
		switch {
		case audioOnly && f.AudioOnly():
			candidates = append(candidates, f)
		case !audioOnly && q == QualityHighestVideo && f.HasVideo:
			candidates = append(candidates, f)
		case !audioOnly && q != QualityHighestVideo && f.Combined():
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		candidates = append(candidates, formats...)
	}
	SortFormats(candidates, audioOnly)

	switch q {
	case QualityHighest, QualityHighestAudio, QualityHighestVideo:
		return candidates[0], nil
	case QualityLowest, QualityLowestAudio:
		return candidates[len(candidates)-1], nil
	}

	if itag, err := strconv.Atoi(q); err == nil {
		for _, f := range candidates {
			if f.Itag == itag {
				return f, nil
			}
		}
		// look outside the candidate set before approximating
		for _, f := range formats {
			if f.Itag == itag {
				return closestHeight(candidates, f.Height), nil
			}
		}
		return candidates[0], nil
	}

	if h, ok := parseLabel(q); ok {
		for _, f := range candidates {
			if strings.EqualFold(f.QualityLabel, q) {
				return f, nil
			}
		}
		return closestHeight(candidates, h), nil
	}
	return candidates[0], nil
}

// SortFormats orders formats best first. Video: height, bitrate, container
// preference, itag. Audio: bitrate, container preference, itag.
func SortFormats(fs []video.Format, audio bool) {
	sort.SliceStable(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if !audio && a.Height != b.Height {
			return a.Height > b.Height
		}
		if a.Bitrate != b.Bitrate {
			return a.Bitrate > b.Bitrate
		}
		if pa, pb := containerRank(a.Container), containerRank(b.Container); pa != pb {
			return pa < pb
		}
		return a.Itag < b.Itag
	})
}

func containerRank(c string) int {
	switch strings.ToLower(c) {
	case "mp4", "m4a":
		return 0
	case "webm":
		return 1
	default:
		return 2
	}
}

// closestHeight returns the format nearest to height; ties go to the taller.
// fs must already be sorted best first.
func closestHeight(fs []video.Format, height int) video.Format {
	best := fs[0]
	bestDiff := abs(best.Height - height)
	for _, f := range fs[1:] {
		d := abs(f.Height - height)
		if d < bestDiff || (d == bestDiff && f.Height > best.Height) {
			best, bestDiff = f, d
		}
	}
	return best
}

// parseLabel reads labels like "720p" or "1080p60".
func parseLabel(q string) (int, bool) {
	i := strings.IndexByte(q, 'p')
	if i <= 0 {
		return 0, false
	}
	h, err := strconv.Atoi(q[:i])
	if err != nil || h <= 0 {
		return 0, false
	}
	return h, true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
