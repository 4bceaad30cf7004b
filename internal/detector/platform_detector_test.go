package detector

import (
	"errors"
	"testing"

	"github.com/rkobroo/Ownrkoapi/internal/utils"
)

func TestClassify(t *testing.T) {
	d := NewPlatformDetector()
	cases := []struct {
		url  string
		want Platform
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", PlatformYouTube},
		{"https://youtu.be/dQw4w9WgXcQ", PlatformYouTube},
		{"https://m.youtube.com/shorts/abc", PlatformYouTube},
		{"https://www.tiktok.com/@user/video/7234", PlatformTikTok},
		{"https://vt.tiktok.com/ABC123", PlatformTikTok},
		{"https://vm.tiktok.com/XYZ/", PlatformTikTok},
		{"https://www.instagram.com/reel/Cx1_-a/", PlatformInstagram},
		{"https://twitter.com/u/status/1", PlatformTwitter},
		{"https://x.com/u/status/1", PlatformTwitter},
		{"https://www.facebook.com/watch?v=123", PlatformFacebook},
		{"https://fb.watch/abc/", PlatformFacebook},
		{"https://vimeo.com/123", PlatformUnknown},
		{"not a url", PlatformUnknown},
		{"://broken", PlatformUnknown},
	}

	for _, tc := range cases {
		if got := d.Classify(tc.url); got != tc.want {
			t.Errorf("Classify(%q) = %s, want %s", tc.url, got, tc.want)
		}
	}
}

func TestClassifyPrecedence(t *testing.T) {
	d := NewPlatformDetector()
	// 同时含 youtube 与 tiktok 片段时按表顺序取 youtube
	if got := d.Classify("https://youtube.com.tiktok.com/x"); got != PlatformYouTube {
		t.Fatalf("got %s, want youtube", got)
	}
	if got := d.Classify("https://vt.tiktok.com/x"); got != PlatformTikTok {
		t.Fatalf("short link got %s, want tiktok", got)
	}
}

func TestIsSupported(t *testing.T) {
	d := NewPlatformDetector()
	for in, want := range map[string]bool{
		"https://www.youtube.com/watch?v=x": true,
		"http://vm.tiktok.com/x":            true,
		"https://example.org/video":         false,
		"not a url":                         false,
		"":                                  false,
		"%%%":                               false,
		"youtube.com/watch?v=x":             false,
	} {
		if got := d.IsSupported(in); got != want {
			t.Errorf("IsSupported(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestDetect(t *testing.T) {
	d := NewPlatformDetector()

	if _, err := d.Detect("not a url"); !errors.Is(err, utils.ErrInvalidURL) {
		t.Fatalf("Detect(invalid) err = %v", err)
	}
	if _, err := d.Detect("https://vimeo.com/1"); !errors.Is(err, utils.ErrUnsupportedPlatform) {
		t.Fatalf("Detect(vimeo) err = %v", err)
	}
	p, err := d.Detect("https://x.com/a/status/1")
	if err != nil || p != PlatformTwitter {
		t.Fatalf("Detect(x.com) = %s, %v", p, err)
	}
}
