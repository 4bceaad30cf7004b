package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/kkdai/youtube/v2"
	"go.uber.org/zap"

	"github.com/rkobroo/Ownrkoapi/internal/detector"
	"github.com/rkobroo/Ownrkoapi/internal/models"
	"github.com/rkobroo/Ownrkoapi/internal/utils"
)

var youtubeIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([^&\n?#]+)`),
	regexp.MustCompile(`youtube\.com/embed/([^&\n?#]+)`),
	regexp.MustCompile(`youtube\.com/v/([^&\n?#]+)`),
	regexp.MustCompile(`youtube\.com/shorts/([^&\n?#/]+)`),
	regexp.MustCompile(`youtube\.com/watch\?.*[&?]v=([^&\n?#]+)`),
}

const (
	youtubeDefaultTitle       = "Untitled Video"
	youtubeDefaultDescription = "No description available"
	youtubeOEmbedDescription  = "Description not available from oEmbed API"
	youtubeDefaultAuthor      = "Unknown Channel"
)

// youtubeFetcher kkdai/youtube 客户端中用到的方法
type youtubeFetcher interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
}

func newKkdaiClient(httpClient *http.Client) *youtube.Client {
	return &youtube.Client{HTTPClient: httpClient}
}

// YouTubeExtractor YouTube 元数据提取: 客户端优先, oEmbed 兜底
type YouTubeExtractor struct {
	client youtubeFetcher
	oembed *oembedClient
	logger *zap.Logger
	now    func() time.Time
}

// NewYouTubeExtractor 创建 YouTube 提取器
func NewYouTubeExtractor(client youtubeFetcher, oembed *oembedClient, logger *zap.Logger) *YouTubeExtractor {
	return &YouTubeExtractor{
		client: client,
		oembed: oembed,
		logger: logger,
		now:    time.Now,
	}
}

// ExtractYouTubeID 从 URL 提取视频 ID
func ExtractYouTubeID(rawURL string) string {
	return firstSubmatch(rawURL, youtubeIDPatterns...)
}

// Extract 提取 YouTube 元数据
func (e *YouTubeExtractor) Extract(ctx context.Context, rawURL string) (*models.VideoMetadata, error) {
	id := ExtractYouTubeID(rawURL)
	if id == "" {
		return nil, &utils.ExtractionError{
			Platform: detector.PlatformYouTube.String(),
			Reason:   "could not extract video ID",
		}
	}

	meta, err := utils.FirstSuccess(ctx,
		utils.Strategy[*models.VideoMetadata]{
			Name: "youtube-client",
			Run:  func(ctx context.Context) (*models.VideoMetadata, error) { return e.fromClient(ctx, id) },
		},
		utils.Strategy[*models.VideoMetadata]{
			Name: "oembed",
			Run:  func(ctx context.Context) (*models.VideoMetadata, error) { return e.fromOEmbed(ctx, id) },
		},
	)
	if err != nil {
		e.logger.Warn("all youtube metadata sources failed", zap.String("video_id", id), zap.Error(err))
		return nil, &utils.ExtractionError{
			Platform: detector.PlatformYouTube.String(),
			Reason:   "all metadata sources failed",
			Err:      err,
		}
	}
	return meta, nil
}

func (e *YouTubeExtractor) fromClient(ctx context.Context, id string) (*models.VideoMetadata, error) {
	if e.client == nil {
		return nil, errors.New("youtube client not configured")
	}
	video, err := e.client.GetVideoContext(ctx, id)
	if err != nil {
		return nil, err
	}

	seconds := int(video.Duration / time.Second)
	meta := &models.VideoMetadata{
		Platform:        detector.PlatformYouTube.String(),
		VideoID:         id,
		Title:           orDefault(video.Title, youtubeDefaultTitle),
		Description:     orDefault(video.Description, youtubeDefaultDescription),
		Duration:        models.FormatDuration(seconds),
		DurationSeconds: seconds,
		Thumbnail:       defaultYouTubeThumbnail(id),
		Author: models.Author{
			Name: orDefault(video.Author, youtubeDefaultAuthor),
			URL:  youtubeChannelURL(video.ChannelID),
		},
		UploadDate: today(e.now),
		ViewCount:  int64(video.Views),
	}
	if !video.PublishDate.IsZero() {
		meta.UploadDate = video.PublishDate.UTC().Format("2006-01-02")
	}

	// 取最宽的缩略图
	var best *youtube.Thumbnail
	for i := range video.Thumbnails {
		if best == nil || video.Thumbnails[i].Width > best.Width {
			best = &video.Thumbnails[i]
		}
	}
	if best != nil && best.URL != "" {
		meta.Thumbnail = models.Thumbnail{URL: best.URL, Width: int(best.Width), Height: int(best.Height)}
	}
	return meta, nil
}

func (e *YouTubeExtractor) fromOEmbed(ctx context.Context, id string) (*models.VideoMetadata, error) {
	watchURL := "https://www.youtube.com/watch?v=" + id
	resp, err := e.oembed.fetch(ctx, "https://www.youtube.com/oembed?url="+url.QueryEscape(watchURL)+"&format=json")
	if err != nil {
		return nil, err
	}

	meta := &models.VideoMetadata{
		Platform:        detector.PlatformYouTube.String(),
		VideoID:         id,
		Title:           orDefault(resp.Title, youtubeDefaultTitle),
		Description:     youtubeOEmbedDescription,
		Duration:        "Unknown",
		DurationSeconds: 0,
		Thumbnail:       defaultYouTubeThumbnail(id),
		Author: models.Author{
			Name: orDefault(resp.AuthorName, youtubeDefaultAuthor),
			URL:  orDefault(resp.AuthorURL, youtubeChannelURL("")),
		},
		UploadDate: today(e.now),
	}
	if resp.ThumbnailURL != "" {
		w, h := resp.thumbnailSize(1280, 720)
		meta.Thumbnail = models.Thumbnail{URL: resp.ThumbnailURL, Width: w, Height: h}
	}
	return meta, nil
}

func defaultYouTubeThumbnail(id string) models.Thumbnail {
	return models.Thumbnail{
		URL:    fmt.Sprintf("https://img.youtube.com/vi/%s/maxresdefault.jpg", id),
		Width:  1280,
		Height: 720,
	}
}

func youtubeChannelURL(channelID string) string {
	return "https://www.youtube.com/channel/" + orDefault(channelID, unknownID)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
