// Package youtube is the video search provider backed by the YouTube Data
// API v3.
package youtube

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/curatorapp/curator-server/internal/domain"
	"github.com/curatorapp/curator-server/internal/ratelimit"
)

const (
	// Per-endpoint limiter defaults. search.list costs 100 quota units,
	// videos.list costs 1.
	defaultRPS   = 2.0
	defaultBurst = 5

	defaultTimeout = 15 * time.Second

	endpointSearch = "search"
	endpointVideos = "videos"
)

// Config configures a Client.
type Config struct {
	APIKey string
	// Endpoint overrides the API base URL, e.g. for tests.
	Endpoint string
	RPS      float64
	Burst    int
	Timeout  time.Duration
}

// Client is a rate-limited YouTube search client.
type Client struct {
	svc     *yt.Service
	limiter *ratelimit.KeyedRateLimiter
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a client. The API key is required.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("youtube: api key required")
	}
	if cfg.RPS <= 0 {
		cfg.RPS = defaultRPS
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	return &Client{
		svc:     svc,
		limiter: ratelimit.New(cfg.RPS, cfg.Burst),
		timeout: cfg.Timeout,
		logger:  logger.With(slog.String("component", "youtube")),
	}, nil
}

// Close releases resources held by the client.
func (c *Client) Close() {
	c.limiter.Stop()
}

// Search runs search.list for q and enriches video hits with duration,
// statistics and tags from videos.list.
func (c *Client) Search(ctx context.Context, q string, opts domain.SearchOptions) (*domain.SearchResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx, endpointSearch); err != nil {
		return nil, wrapError(ctx, endpointSearch, q, fmt.Errorf("rate limit wait: %w", err))
	}

	call := c.svc.Search.List([]string{"snippet"}).
		Q(q).
		MaxResults(int64(opts.MaxResults)).
		Context(ctx)
	if opts.Type != "" {
		call = call.Type(opts.Type)
	}
	if opts.Order != "" {
		call = call.Order(opts.Order)
	}
	if opts.Type == "video" && opts.VideoDuration != "" {
		call = call.VideoDuration(opts.VideoDuration)
	}
	if opts.PageToken != "" {
		call = call.PageToken(opts.PageToken)
	}
	if opts.PublishedAfter != "" {
		call = call.PublishedAfter(opts.PublishedAfter)
	}
	if opts.RegionCode != "" {
		call = call.RegionCode(strings.ToUpper(opts.RegionCode))
	}
	if opts.RelevanceLanguage != "" {
		call = call.RelevanceLanguage(opts.RelevanceLanguage)
	}

	c.logger.Debug("youtube search", "query", q, "page_token", opts.PageToken, "max_results", opts.MaxResults)

	resp, err := call.Do()
	if err != nil {
		return nil, wrapError(ctx, endpointSearch, q, err)
	}

	out := &domain.SearchResponse{
		Items:         make([]domain.RawVideo, 0, len(resp.Items)),
		NextPageToken: resp.NextPageToken,
		PrevPageToken: resp.PrevPageToken,
	}
	if resp.PageInfo != nil {
		out.TotalResults = resp.PageInfo.TotalResults
	}

	var videoIDs []string
	for _, item := range resp.Items {
		v, ok := fromSearchResult(item)
		if !ok {
			continue
		}
		if item.Id.VideoId != "" {
			videoIDs = append(videoIDs, item.Id.VideoId)
		}
		out.Items = append(out.Items, v)
	}

	if len(videoIDs) > 0 {
		details, err := c.videoDetails(ctx, videoIDs)
		if err != nil {
			return nil, wrapError(ctx, endpointVideos, q, err)
		}
		for i := range out.Items {
			if d, ok := details[out.Items[i].ID]; ok {
				mergeDetails(&out.Items[i], d)
			}
		}
	}

	return out, nil
}

func (c *Client) videoDetails(ctx context.Context, ids []string) (map[string]*yt.Video, error) {
	if err := c.limiter.Wait(ctx, endpointVideos); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	resp, err := c.svc.Videos.List([]string{"snippet", "contentDetails", "statistics"}).
		Id(ids...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	out := make(map[string]*yt.Video, len(resp.Items))
	for _, v := range resp.Items {
		out[v.Id] = v
	}
	return out, nil
}

func fromSearchResult(item *yt.SearchResult) (domain.RawVideo, bool) {
	if item == nil || item.Id == nil || item.Snippet == nil {
		return domain.RawVideo{}, false
	}
	id := item.Id.VideoId
	if id == "" {
		id = item.Id.ChannelId
	}
	if id == "" {
		id = item.Id.PlaylistId
	}
	if id == "" {
		return domain.RawVideo{}, false
	}

	s := item.Snippet
	v := domain.RawVideo{
		ID:           id,
		Title:        s.Title,
		Description:  s.Description,
		ChannelID:    s.ChannelId,
		ChannelTitle: s.ChannelTitle,
	}
	if t, err := time.Parse(time.RFC3339, s.PublishedAt); err == nil {
		v.PublishedAt = t
	}
	if s.Thumbnails != nil {
		if s.Thumbnails.Default != nil {
			v.Thumbnails.Default = s.Thumbnails.Default.Url
		}
		if s.Thumbnails.Medium != nil {
			v.Thumbnails.Medium = s.Thumbnails.Medium.Url
		}
		if s.Thumbnails.High != nil {
			v.Thumbnails.High = s.Thumbnails.High.Url
		}
	}
	return v, true
}

func mergeDetails(v *domain.RawVideo, d *yt.Video) {
	if d.ContentDetails != nil {
		v.Duration = d.ContentDetails.Duration
	}
	if d.Statistics != nil {
		v.ViewCount = d.Statistics.ViewCount
		v.LikeCount = d.Statistics.LikeCount
		v.CommentCount = d.Statistics.CommentCount
	}
	if d.Snippet != nil {
		v.Tags = d.Snippet.Tags
		// The full description is only available from videos.list.
		if d.Snippet.Description != "" {
			v.Description = d.Snippet.Description
		}
	}
}
