package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/kkdai/youtube/v2"
	"go.uber.org/zap/zaptest"

	"github.com/rkobroo/Ownrkoapi/internal/config"
	"github.com/rkobroo/Ownrkoapi/internal/detector"
	"github.com/rkobroo/Ownrkoapi/internal/utils"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(r *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    r,
	}
}

func failingClient() *http.Client {
	return &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("network down")
	})}
}

type fakeFetcher struct {
	video *youtube.Video
	err   error
	gotID string
}

func (f *fakeFetcher) GetVideoContext(_ context.Context, id string) (*youtube.Video, error) {
	f.gotID = id
	return f.video, f.err
}

func fixedNow() time.Time { return time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC) }

func TestExtractYouTubeID(t *testing.T) {
	tests := []struct {
		url, want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ?si=abc", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/v/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/abc123", "abc123"},
		{"https://www.youtube.com/watch?feature=share&v=xyz", "xyz"},
		{"https://www.youtube.com/feed/trending", ""},
	}
	for _, tt := range tests {
		if got := ExtractYouTubeID(tt.url); got != tt.want {
			t.Errorf("ExtractYouTubeID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestYouTubePrimarySource(t *testing.T) {
	fetcher := &fakeFetcher{video: &youtube.Video{
		Title:     "T",
		Author:    "Chan",
		ChannelID: "UC123",
		Duration:  125 * time.Second,
		Views:     10,
	}}
	e := NewYouTubeExtractor(fetcher, newOEmbedClient(failingClient(), ""), zaptest.NewLogger(t))
	e.now = fixedNow

	meta, err := e.Extract(context.Background(), "https://www.youtube.com/watch?v=abc")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if fetcher.gotID != "abc" {
		t.Errorf("fetched id = %q", fetcher.gotID)
	}
	if meta.Title != "T" || meta.Duration != "2:05" || meta.DurationSeconds != 125 || meta.ViewCount != 10 {
		t.Errorf("meta = %+v", meta)
	}
	if meta.Description != "No description available" {
		t.Errorf("description = %q", meta.Description)
	}
	if meta.Thumbnail.URL != "https://img.youtube.com/vi/abc/maxresdefault.jpg" || meta.Thumbnail.Width != 1280 {
		t.Errorf("thumbnail = %+v", meta.Thumbnail)
	}
	if meta.Author.URL != "https://www.youtube.com/channel/UC123" {
		t.Errorf("author = %+v", meta.Author)
	}
	if meta.UploadDate != "2024-03-09" {
		t.Errorf("upload date = %q", meta.UploadDate)
	}
}

func TestYouTubeOEmbedFallback(t *testing.T) {
	var gotURL string
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		gotURL = r.URL.String()
		return jsonResponse(r, http.StatusOK,
			`{"title":"From oEmbed","author_name":"Someone","author_url":"https://www.youtube.com/@someone",`+
				`"thumbnail_url":"https://i.ytimg.com/vi/abc/hqdefault.jpg","thumbnail_width":480,"thumbnail_height":360}`), nil
	})}
	fetcher := &fakeFetcher{err: errors.New("player response blocked")}
	e := NewYouTubeExtractor(fetcher, newOEmbedClient(client, ""), zaptest.NewLogger(t))

	meta, err := e.Extract(context.Background(), "https://youtu.be/abc")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.HasPrefix(gotURL, "https://www.youtube.com/oembed?url=") || !strings.Contains(gotURL, "format=json") {
		t.Errorf("oembed url = %s", gotURL)
	}
	if meta.Title != "From oEmbed" || meta.DurationSeconds != 0 || meta.Duration != "Unknown" {
		t.Errorf("meta = %+v", meta)
	}
	if meta.Description != "Description not available from oEmbed API" {
		t.Errorf("description = %q", meta.Description)
	}
	if meta.Thumbnail.Width != 480 || meta.Author.Name != "Someone" {
		t.Errorf("thumbnail/author = %+v %+v", meta.Thumbnail, meta.Author)
	}
}

func TestYouTubeAllSourcesFail(t *testing.T) {
	e := NewYouTubeExtractor(&fakeFetcher{err: errors.New("blocked")}, newOEmbedClient(failingClient(), ""), zaptest.NewLogger(t))

	_, err := e.Extract(context.Background(), "https://www.youtube.com/watch?v=abc")
	var ee *utils.ExtractionError
	if !errors.As(err, &ee) || ee.Platform != "youtube" {
		t.Fatalf("err = %v", err)
	}
	if !errors.Is(err, utils.ErrExtractionFailed) {
		t.Error("should match ErrExtractionFailed")
	}
	for _, name := range []string{"youtube-client", "oembed"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("aggregated error should name %s: %v", name, err)
		}
	}
}

func TestYouTubeMissingID(t *testing.T) {
	e := NewYouTubeExtractor(&fakeFetcher{}, newOEmbedClient(failingClient(), ""), zaptest.NewLogger(t))
	_, err := e.Extract(context.Background(), "https://www.youtube.com/feed/trending")
	if !errors.Is(err, utils.ErrExtractionFailed) {
		t.Fatalf("err = %v", err)
	}
	if errors.Is(err, utils.ErrInvalidURL) {
		t.Errorf("missing id must not look like a malformed url: %v", err)
	}
	if code := utils.HTTPStatus(err); code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
}

func TestYouTubeOEmbedThumbnailDefaults(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(r, http.StatusOK,
			`{"title":"No Size","thumbnail_url":"https://i.ytimg.com/vi/abc/hqdefault.jpg"}`), nil
	})}
	e := NewYouTubeExtractor(&fakeFetcher{err: errors.New("blocked")}, newOEmbedClient(client, ""), zaptest.NewLogger(t))

	meta, err := e.Extract(context.Background(), "https://youtu.be/abc")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if meta.Thumbnail.URL != "https://i.ytimg.com/vi/abc/hqdefault.jpg" || meta.Thumbnail.Width != 1280 || meta.Thumbnail.Height != 720 {
		t.Errorf("thumbnail = %+v", meta.Thumbnail)
	}
}

func TestTikTokShortLinkResolution(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %s", r.Method)
		}
		if !strings.Contains(r.Header.Get("User-Agent"), "Chrome") {
			t.Errorf("user agent = %q", r.Header.Get("User-Agent"))
		}
		resolved, _ := http.NewRequest(http.MethodHead, "https://www.tiktok.com/@user/video/7234567890123456789", nil)
		return jsonResponse(resolved, http.StatusOK, ""), nil
	})}
	e := NewTikTokExtractor(client, zaptest.NewLogger(t))

	meta, err := e.Extract(context.Background(), "https://vt.tiktok.com/ZSabc/")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if meta.VideoID != "7234567890123456789" {
		t.Errorf("id = %q", meta.VideoID)
	}
	if meta.Title != "TikTok Video (7234567890123456789)" {
		t.Errorf("title = %q", meta.Title)
	}
	if meta.Author.URL != "https://www.tiktok.com/@user/video/7234567890123456789" {
		t.Errorf("author url should be resolved url: %q", meta.Author.URL)
	}
}

func TestTikTokFailedRedirectUsesOriginal(t *testing.T) {
	e := NewTikTokExtractor(failingClient(), zaptest.NewLogger(t))

	meta, err := e.Extract(context.Background(), "https://vt.tiktok.com/ABC123")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if meta.VideoID != "ABC123" || meta.Thumbnail.Width != 720 || meta.DurationSeconds != 0 {
		t.Errorf("meta = %+v", meta)
	}
}

func TestTikTokUnknownID(t *testing.T) {
	e := NewTikTokExtractor(failingClient(), zaptest.NewLogger(t))
	meta, err := e.Extract(context.Background(), "https://www.tiktok.com/discover")
	if err != nil || meta.VideoID != "unknown" {
		t.Fatalf("meta = %+v err = %v", meta, err)
	}
}

func TestInstagramOEmbedMerge(t *testing.T) {
	var gotURL string
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		gotURL = r.URL.String()
		return jsonResponse(r, http.StatusOK, `{"title":"Reel title","author_name":"insta_user","thumbnail_url":"https://cdn/x.jpg"}`), nil
	})}
	e := NewInstagramExtractor(newOEmbedClient(client, ""), "guest", zaptest.NewLogger(t))

	meta, err := e.Extract(context.Background(), "https://www.instagram.com/reel/Cx_1-a/")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.HasPrefix(gotURL, "https://graph.facebook.com/v8.0/instagram_oembed?url=") || !strings.Contains(gotURL, "access_token=guest") {
		t.Errorf("oembed url = %s", gotURL)
	}
	if meta.VideoID != "Cx_1-a" || meta.Title != "Reel title" || meta.Author.Name != "insta_user" {
		t.Errorf("meta = %+v", meta)
	}
	// 缺失的尺寸使用默认值
	if meta.Thumbnail.URL != "https://cdn/x.jpg" || meta.Thumbnail.Width != 640 {
		t.Errorf("thumbnail = %+v", meta.Thumbnail)
	}
	if meta.Description != "Instagram video content" {
		t.Errorf("description = %q", meta.Description)
	}
}

func TestInstagramDegradesToDefaults(t *testing.T) {
	e := NewInstagramExtractor(newOEmbedClient(failingClient(), ""), "guest", zaptest.NewLogger(t))

	meta, err := e.Extract(context.Background(), "https://www.instagram.com/p/ABC/")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if meta.Title != "Instagram Video" || meta.Author.Name != "Instagram User" || meta.Author.URL != "https://www.instagram.com/p/ABC/" {
		t.Errorf("meta = %+v", meta)
	}
}

func TestTwitterDescriptionFromHTML(t *testing.T) {
	html := `<blockquote class="twitter-tweet"><p lang="en">` + strings.Repeat("word ", 60) + `</p></blockquote>`
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(r, http.StatusOK, `{"author_name":"jack","html":`+quote(html)+`}`), nil
	})}
	e := NewTwitterExtractor(newOEmbedClient(client, ""), zaptest.NewLogger(t))

	meta, err := e.Extract(context.Background(), "https://x.com/jack/status/20")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if meta.VideoID != "20" || meta.Title != "Twitter Video" || meta.Author.Name != "jack" {
		t.Errorf("meta = %+v", meta)
	}
	if strings.Contains(meta.Description, "<") || len([]rune(meta.Description)) != 200 {
		t.Errorf("description = %q (%d runes)", meta.Description, len([]rune(meta.Description)))
	}
}

func TestFacebookStub(t *testing.T) {
	e := NewFacebookExtractor()
	meta, err := e.Extract(context.Background(), "https://www.facebook.com/watch/?v=123456")
	if err != nil {
		t.Fatal(err)
	}
	if meta.VideoID != "123456" || meta.Title != "Facebook Video" || meta.Thumbnail.Height != 360 {
		t.Errorf("meta = %+v", meta)
	}

	meta, _ = e.Extract(context.Background(), "https://www.facebook.com/page/videos/987")
	if meta.VideoID != "987" {
		t.Errorf("videos path id = %q", meta.VideoID)
	}
}

func TestRegistry(t *testing.T) {
	cfg := &config.Config{Platforms: map[string]config.PlatformConfig{"facebook": {Enabled: false}}}
	r := NewRegistry(cfg, failingClient(), zaptest.NewLogger(t))

	for _, p := range []detector.Platform{detector.PlatformYouTube, detector.PlatformTikTok, detector.PlatformInstagram, detector.PlatformTwitter} {
		if ext, err := r.For(p); err != nil || ext == nil {
			t.Errorf("For(%s) = %v, %v", p, ext, err)
		}
	}
	if _, err := r.For(detector.PlatformFacebook); !errors.Is(err, utils.ErrNotYetImplemented) {
		t.Errorf("disabled platform err = %v", err)
	}
	if _, err := r.For(detector.PlatformUnknown); !errors.Is(err, utils.ErrUnsupportedPlatform) {
		t.Errorf("unknown platform err = %v", err)
	}
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestShippedConfigEnablesEveryPlatform(t *testing.T) {
	cfg, err := config.LoadConfig("../../config/dev.yaml")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	r := NewRegistry(cfg, failingClient(), zaptest.NewLogger(t))

	for _, p := range []detector.Platform{
		detector.PlatformYouTube,
		detector.PlatformTikTok,
		detector.PlatformInstagram,
		detector.PlatformTwitter,
		detector.PlatformFacebook,
	} {
		if _, err := r.For(p); err != nil {
			t.Errorf("%s: %v", p, err)
		}
	}

	// Facebook 总是返回占位记录
	ext, _ := r.For(detector.PlatformFacebook)
	meta, err := ext.Extract(context.Background(), "https://www.facebook.com/watch/?v=123456")
	if err != nil || meta.Platform != "facebook" {
		t.Fatalf("facebook extract = %+v, %v", meta, err)
	}
}
