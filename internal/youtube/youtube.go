// Package youtube answers "what is the latest video" for the known channels.
package youtube

import (
	"context"
	"fmt"
	"html"
	"sort"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/alveusgg/sanctuary/internal/metrics"
)

// CacheTTL is how long a latest video answer is reused
const CacheTTL = 30 * time.Minute

// NoVideos is the answer for a channel without videos
const NoVideos = "No videos found"

type Video struct {
	ID        string
	Title     string
	Published time.Time
}

// VideoSource lists recent videos of a channel
type VideoSource interface {
	RecentVideos(ctx context.Context, channelID string) ([]Video, error)
}

// Cache stores answers by channel key
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// APIClient reads videos through the YouTube Data API
type APIClient struct {
	svc        *youtube.Service
	maxResults int64
}

// NewAPIClient creates a client. Extra options are passed to the service,
// which tests use to point it at a fake endpoint.
func NewAPIClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (*APIClient, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &APIClient{svc: svc, maxResults: 15}, nil
}

func (c *APIClient) RecentVideos(ctx context.Context, channelID string) ([]Video, error) {
	resp, err := c.svc.Search.List([]string{"snippet"}).
		ChannelId(channelID).
		Order("date").
		Type("video").
		MaxResults(c.maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("search videos: %w", err)
	}

	videos := make([]Video, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		published, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		if err != nil {
			continue
		}
		videos = append(videos, Video{
			ID:        item.Id.VideoId,
			Title:     html.UnescapeString(item.Snippet.Title),
			Published: published,
		})
	}

	return videos, nil
}

// Latest formats the most recently published video as "{title} - {url}"
func Latest(videos []Video) string {
	if len(videos) == 0 {
		return NoVideos
	}

	sorted := make([]Video, len(videos))
	copy(sorted, videos)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Published.After(sorted[j].Published)
	})

	return fmt.Sprintf("%s - https://youtu.be/%s", sorted[0].Title, sorted[0].ID)
}

// Service serves latest video answers, through the cache when one is set
type Service struct {
	source VideoSource
	cache  Cache
	logger *zap.Logger
}

// NewService creates the service. cache may be nil.
func NewService(source VideoSource, cache Cache, logger *zap.Logger) *Service {
	return &Service{source: source, cache: cache, logger: logger}
}

// LatestVideo returns the answer for the channel stored under key
func (s *Service) LatestVideo(ctx context.Context, key, channelID string) (string, error) {
	if s.cache != nil {
		if val, ok, err := s.cache.Get(ctx, key); err != nil {
			s.logger.Warn("youtube cache read failed", zap.Error(err), zap.String("channel", key))
		} else if ok {
			metrics.RecordYouTubeLookup(key, "cache")
			return val, nil
		}
	}

	videos, err := s.source.RecentVideos(ctx, channelID)
	if err != nil {
		metrics.RecordYouTubeLookup(key, "error")
		return "", err
	}

	answer := Latest(videos)
	metrics.RecordYouTubeLookup(key, "api")

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, answer, CacheTTL); err != nil {
			s.logger.Warn("youtube cache write failed", zap.Error(err), zap.String("channel", key))
		}
	}

	return answer, nil
}
