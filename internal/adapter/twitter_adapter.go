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

var twitterIDPattern = regexp.MustCompile(`(?:twitter\.com|x\.com)/\w+/status/(\d+)`)

const twitterDescriptionLimit = 200

// TwitterExtractor Twitter/X 元数据: oEmbed 结果覆盖默认值
type TwitterExtractor struct {
	oembed *oembedClient
	logger *zap.Logger
	now    func() time.Time
}

// NewTwitterExtractor 创建 Twitter 提取器
func NewTwitterExtractor(oembed *oembedClient, logger *zap.Logger) *TwitterExtractor {
	return &TwitterExtractor{oembed: oembed, logger: logger, now: time.Now}
}

// Extract 提取 Twitter 元数据, 描述取自 oEmbed html 去标签后的文本
func (e *TwitterExtractor) Extract(ctx context.Context, rawURL string) (*models.VideoMetadata, error) {
	id := orDefault(firstSubmatch(rawURL, twitterIDPattern), unknownID)

	return utils.FirstSuccess(ctx,
		utils.Strategy[*models.VideoMetadata]{
			Name: "oembed",
			Run: func(ctx context.Context) (*models.VideoMetadata, error) {
				resp, err := e.oembed.fetch(ctx, "https://publish.twitter.com/oembed?url="+url.QueryEscape(rawURL))
				if err != nil {
					e.logger.Debug("twitter oembed failed", zap.String("url", rawURL), zap.Error(err))
					return nil, err
				}
				meta := e.defaults(rawURL, id)
				if text := utils.StripTags(resp.HTML, twitterDescriptionLimit); text != "" {
					meta.Description = text
				}
				meta.Author.Name = orDefault(resp.AuthorName, meta.Author.Name)
				meta.Author.URL = orDefault(resp.AuthorURL, meta.Author.URL)
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

func (e *TwitterExtractor) defaults(rawURL, id string) *models.VideoMetadata {
	meta := stubMetadata(detector.PlatformTwitter, id, e.now)
	meta.Title = "Twitter Video"
	meta.Description = "Twitter video content"
	meta.Thumbnail = models.Thumbnail{
		URL:    "https://via.placeholder.com/640x360?text=Twitter+Video",
		Width:  640,
		Height: 360,
	}
	meta.Author = models.Author{Name: "Twitter User", URL: rawURL}
	return meta
}
