package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/sosodev/duration"

	"github.com/curatorapp/curator-server/internal/domain"
)

const watchURL = "https://www.youtube.com/watch?v="

// ParseDuration converts an ISO 8601 video duration such as "PT1H2M3S" to
// whole seconds. It reports false for empty, negative or malformed input.
func ParseDuration(iso string) (int, bool) {
	iso = strings.TrimSpace(iso)
	if iso == "" || iso == "P" || iso == "PT" {
		return 0, false
	}
	d, err := duration.Parse(iso)
	if err != nil || d.Negative {
		return 0, false
	}
	return int(d.ToTimeDuration() / time.Second), true
}

// FormatDuration renders seconds as M:SS, or H:MM:SS from one hour up.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := seconds % 3600 / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// ToVideoUI projects provider results for display. The output is a fresh
// slice; the input is not modified.
func ToVideoUI(items []domain.RawVideo) []domain.VideoUI {
	out := make([]domain.VideoUI, 0, len(items))
	for _, v := range items {
		secs, _ := ParseDuration(v.Duration)
		out = append(out, domain.VideoUI{
			ID:              v.ID,
			Title:           v.Title,
			Description:     v.Description,
			ChannelID:       v.ChannelID,
			ChannelTitle:    v.ChannelTitle,
			ThumbnailURL:    v.Thumbnails.Best(),
			PublishedAt:     v.PublishedAt,
			ViewCount:       v.ViewCount,
			LikeCount:       v.LikeCount,
			CommentCount:    v.CommentCount,
			Duration:        FormatDuration(secs),
			DurationSeconds: secs,
			URL:             watchURL + v.ID,
			Tags:            append([]string(nil), v.Tags...),
		})
	}
	return out
}
