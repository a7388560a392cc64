package domain

import "time"

// Analysis is an externally computed judgement of how well a video matches a category.
type Analysis struct {
	VideoID        string    `json:"video_id" validate:"notblank"`
	CategoryID     string    `json:"category_id" validate:"notblank"`
	UserID         string    `json:"user_id"`
	VideoTitle     string    `json:"video_title,omitempty"`
	ChannelTitle   string    `json:"channel_title,omitempty"`
	RelevanceScore int       `json:"relevance_score" validate:"gte=0,lte=100"`
	Summary        string    `json:"summary,omitempty"`
	Topics         []string  `json:"topics,omitempty"`
	Reasoning      string    `json:"reasoning,omitempty"`
	Model          string    `json:"model,omitempty"`
	AnalyzedAt     time.Time `json:"analyzed_at"`
}
