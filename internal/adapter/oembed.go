package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// oembedResponse oEmbed 响应中用到的字段
type oembedResponse struct {
	Title           string      `json:"title"`
	AuthorName      string      `json:"author_name"`
	AuthorURL       string      `json:"author_url"`
	ThumbnailURL    string      `json:"thumbnail_url"`
	ThumbnailWidth  json.Number `json:"thumbnail_width"`
	ThumbnailHeight json.Number `json:"thumbnail_height"`
	HTML            string      `json:"html"`
}

// thumbnailSize 缩略图尺寸, 缺失时返回默认值
func (r *oembedResponse) thumbnailSize(defW, defH int) (int, int) {
	w, errW := r.ThumbnailWidth.Int64()
	h, errH := r.ThumbnailHeight.Int64()
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return defW, defH
	}
	return int(w), int(h)
}

// oembedClient oEmbed 查询客户端
type oembedClient struct {
	http      *http.Client
	userAgent string
}

func newOEmbedClient(httpClient *http.Client, userAgent string) *oembedClient {
	return &oembedClient{http: httpClient, userAgent: userAgent}
}

// fetch 请求 oEmbed 接口并解码
func (c *oembedClient) fetch(ctx context.Context, endpoint string) (*oembedResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oembed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("oembed returned status %d", resp.StatusCode)
	}

	var out oembedResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode oembed response: %w", err)
	}
	return &out, nil
}
