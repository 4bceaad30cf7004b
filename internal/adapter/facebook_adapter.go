package adapter

import (
	"context"
	"regexp"
	"time"

	"github.com/rkobroo/Ownrkoapi/internal/detector"
	"github.com/rkobroo/Ownrkoapi/internal/models"
)

var facebookIDPattern = regexp.MustCompile(`facebook\.com/(?:watch/?\?v=|.*/videos/)(\d+)`)

// FacebookExtractor Facebook 占位元数据
type FacebookExtractor struct {
	now func() time.Time
}

// NewFacebookExtractor 创建 Facebook 提取器
func NewFacebookExtractor() *FacebookExtractor {
	return &FacebookExtractor{now: time.Now}
}

// Extract 返回占位记录
func (e *FacebookExtractor) Extract(_ context.Context, rawURL string) (*models.VideoMetadata, error) {
	id := orDefault(firstSubmatch(rawURL, facebookIDPattern), unknownID)

	meta := stubMetadata(detector.PlatformFacebook, id, e.now)
	meta.Title = "Facebook Video"
	meta.Description = "Facebook video content"
	meta.Thumbnail = models.Thumbnail{
		URL:    "https://via.placeholder.com/640x360?text=Facebook+Video",
		Width:  640,
		Height: 360,
	}
	meta.Author = models.Author{Name: "Facebook User", URL: rawURL}
	return meta, nil
}
