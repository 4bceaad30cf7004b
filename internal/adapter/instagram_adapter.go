package adapter

import (
	"context"
	"net/url"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/rkobroo/Ownrkoapi/internal/detector"
	"github.com/rkobroo/Ownrkoapi/internal/models"
	"github.com/rkobroo/Ownrkoapi/internal/utils"
)

var instagramIDPattern = regexp.MustCompile(`instagram\.com/(?:p|reel|tv)/([A-Za-z0-9_-]+)`)

// InstagramExtractor Instagram 元数据: oEmbed 结果覆盖默认值
type InstagramExtractor struct {
	oembed      *oembedClient
	accessToken string
	logger      *zap.Logger
	now         func() time.Time
}

// NewInstagramExtractor 创建 Instagram 提取器
func NewInstagramExtractor(oembed *oembedClient, accessToken string, logger *zap.Logger) *InstagramExtractor {
	return &InstagramExtractor{oembed: oembed, accessToken: accessToken, logger: logger, now: time.Now}
}

// Extract 提取 Instagram 元数据, oEmbed 失败时退回默认值
func (e *InstagramExtractor) Extract(ctx context.Context, rawURL string) (*models.VideoMetadata, error) {
	id := orDefault(firstSubmatch(rawURL, instagramIDPattern), unknownID)

	return utils.FirstSuccess(ctx,
		utils.Strategy[*models.VideoMetadata]{
			Name: "oembed",
			Run: func(ctx context.Context) (*models.VideoMetadata, error) {
				endpoint := "https://graph.facebook.com/v8.0/instagram_oembed?url=" + url.QueryEscape(rawURL) +
					"&access_token=" + url.QueryEscape(e.accessToken)
				resp, err := e.oembed.fetch(ctx, endpoint)
				if err != nil {
					e.logger.Debug("instagram oembed failed", zap.String("url", rawURL), zap.Error(err))
					return nil, err
				}
				meta := e.defaults(rawURL, id)
				meta.Title = orDefault(resp.Title, meta.Title)
				meta.Author.Name = orDefault(resp.AuthorName, meta.Author.Name)
				meta.Author.URL = orDefault(resp.AuthorURL, meta.Author.URL)
				if resp.ThumbnailURL != "" {
					w, h := resp.thumbnailSize(640, 640)
					meta.Thumbnail = models.Thumbnail{URL: resp.ThumbnailURL, Width: w, Height: h}
				}
				return meta, nil
			},
		},
		utils.Strategy[*models.VideoMetadata]{
			Name: "defaults",
			Run: func(context.Context) (*models.VideoMetadata, error) {
				return e.defaults(rawURL, id), nil
			},
		},
	)
}

func (e *InstagramExtractor) defaults(rawURL, id string) *models.VideoMetadata {
	meta := stubMetadata(detector.PlatformInstagram, id, e.now)
	meta.Title = "Instagram Video"
	meta.Description = "Instagram video content"
	meta.Thumbnail = models.Thumbnail{
		URL:    "https://via.placeholder.com/640x640?text=Instagram+Video",
		Width:  640,
		Height: 640,
	}
	meta.Author = models.Author{Name: "Instagram User", URL: rawURL}
	return meta
}
