package domain

import "time"

// Search option values accepted by the provider.
const (
	DefaultMaxResults    = 25
	DefaultSearchType    = "video"
	DefaultOrder         = "relevance"
	DefaultVideoDuration = "any"
)

// SearchOptions tunes a provider search. Zero fields mean "use the default".
type SearchOptions struct {
	MaxResults        int    `json:"max_results,omitempty" validate:"omitempty,gte=1,lte=50"`
	Type              string `json:"type,omitempty" validate:"omitempty,oneof=video channel playlist"`
	Order             string `json:"order,omitempty" validate:"omitempty,oneof=relevance date rating viewCount title"`
	VideoDuration     string `json:"video_duration,omitempty" validate:"omitempty,oneof=any short medium long"`
	PageToken         string `json:"page_token,omitempty"`
	PublishedAfter    string `json:"published_after,omitempty"`
	RegionCode        string `json:"region_code,omitempty" validate:"omitempty,len=2"`
	RelevanceLanguage string `json:"relevance_language,omitempty"`
}

// DefaultSearchOptions returns the options applied to every search.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		MaxResults:    DefaultMaxResults,
		Type:          DefaultSearchType,
		Order:         DefaultOrder,
		VideoDuration: DefaultVideoDuration,
	}
}

// Merge returns o with every non-zero field of override applied.
func (o SearchOptions) Merge(override *SearchOptions) SearchOptions {
	if override == nil {
		return o
	}
	if override.MaxResults > 0 {
		o.MaxResults = override.MaxResults
	}
	if override.Type != "" {
		o.Type = override.Type
	}
	if override.Order != "" {
		o.Order = override.Order
	}
	if override.VideoDuration != "" {
		o.VideoDuration = override.VideoDuration
	}
	if override.PageToken != "" {
		o.PageToken = override.PageToken
	}
	if override.PublishedAfter != "" {
		o.PublishedAfter = override.PublishedAfter
	}
	if override.RegionCode != "" {
		o.RegionCode = override.RegionCode
	}
	if override.RelevanceLanguage != "" {
		o.RelevanceLanguage = override.RelevanceLanguage
	}
	return o
}

// Thumbnails holds provider thumbnail URLs by size.
type Thumbnails struct {
	Default string `json:"default,omitempty"`
	Medium  string `json:"medium,omitempty"`
	High    string `json:"high,omitempty"`
}

// Best returns the highest resolution thumbnail available.
func (t Thumbnails) Best() string {
	switch {
	case t.High != "":
		return t.High
	case t.Medium != "":
		return t.Medium
	default:
		return t.Default
	}
}

// RawVideo is video metadata as returned by the search provider.
type RawVideo struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	ChannelID    string     `json:"channel_id"`
	ChannelTitle string     `json:"channel_title"`
	PublishedAt  time.Time  `json:"published_at"`
	Thumbnails   Thumbnails `json:"thumbnails"`
	Tags         []string   `json:"tags,omitempty"`
	Duration     string     `json:"duration,omitempty"` // ISO 8601, e.g. PT4M13S
	ViewCount    uint64     `json:"view_count"`
	LikeCount    uint64     `json:"like_count"`
	CommentCount uint64     `json:"comment_count"`
}

// SearchResponse is one page of provider results.
type SearchResponse struct {
	Items         []RawVideo `json:"items"`
	TotalResults  int64      `json:"total_results"`
	NextPageToken string     `json:"next_page_token,omitempty"`
	PrevPageToken string     `json:"prev_page_token,omitempty"`
}

// VideoUI is the display projection of a RawVideo plus any cached analysis.
type VideoUI struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	ChannelID       string    `json:"channel_id"`
	ChannelTitle    string    `json:"channel_title"`
	ThumbnailURL    string    `json:"thumbnail_url"`
	PublishedAt     time.Time `json:"published_at"`
	ViewCount       uint64    `json:"view_count"`
	LikeCount       uint64    `json:"like_count"`
	CommentCount    uint64    `json:"comment_count"`
	Duration        string    `json:"duration"`
	DurationSeconds int       `json:"duration_seconds"`
	URL             string    `json:"url"`
	Tags            []string  `json:"tags,omitempty"`

	RelevanceScore *int      `json:"relevance_score,omitempty"`
	Analysis       *Analysis `json:"analysis,omitempty"`
}
