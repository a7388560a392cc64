package videoindex

import (
	"strings"

	"github.com/curatorapp/curator-server/internal/domain"
)

// Indexed field names.
const (
	fieldUserID     = "user_id"
	fieldCategoryID = "category_id"
	fieldVideoID    = "video_id"
	fieldTitle      = "title"
	fieldChannel    = "channel_title"
	fieldSummary    = "summary"
	fieldReasoning  = "reasoning"
	fieldTopics     = "topics"
	fieldModel      = "model"
	fieldScore      = "relevance_score"
	fieldAnalyzedAt = "analyzed_at"
)

// Document is the flattened form of an analysis stored in the index.
type Document struct {
	ID             string
	UserID         string
	CategoryID     string
	VideoID        string
	Title          string
	ChannelTitle   string
	Summary        string
	Reasoning      string
	Topics         []string
	Model          string
	RelevanceScore int
	AnalyzedAt     int64 // unix millis
}

// DocumentID is the index key for one user's analysis of a video in a category.
func DocumentID(userID, categoryID, videoID string) string {
	return strings.Join([]string{userID, categoryID, videoID}, ":")
}

// FromAnalysis converts an analysis into an index document.
func FromAnalysis(a *domain.Analysis) *Document {
	return &Document{
		ID:             DocumentID(a.UserID, a.CategoryID, a.VideoID),
		UserID:         a.UserID,
		CategoryID:     a.CategoryID,
		VideoID:        a.VideoID,
		Title:          a.VideoTitle,
		ChannelTitle:   a.ChannelTitle,
		Summary:        a.Summary,
		Reasoning:      a.Reasoning,
		Topics:         a.Topics,
		Model:          a.Model,
		RelevanceScore: a.RelevanceScore,
		AnalyzedAt:     a.AnalyzedAt.UnixMilli(),
	}
}

// ToMap returns the document keyed by mapped field names.
func (d *Document) ToMap() map[string]any {
	return map[string]any{
		fieldUserID:     d.UserID,
		fieldCategoryID: d.CategoryID,
		fieldVideoID:    d.VideoID,
		fieldTitle:      d.Title,
		fieldChannel:    d.ChannelTitle,
		fieldSummary:    d.Summary,
		fieldReasoning:  d.Reasoning,
		fieldTopics:     d.Topics,
		fieldModel:      d.Model,
		fieldScore:      float64(d.RelevanceScore),
		fieldAnalyzedAt: float64(d.AnalyzedAt),
	}
}
