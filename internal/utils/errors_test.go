package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestMapYTDLPError(t *testing.T) {
	cases := []struct {
		stderr string
		want   error
	}{
		{"ERROR: [youtube] abc: Video unavailable", ErrVideoNotFound},
		{"ERROR: Private video. Sign in if you've been granted access", ErrVideoPrivate},
		{"ERROR: This video has been deleted", ErrVideoDeleted},
		{"ERROR: This video is not available in your country", ErrGeoRestricted},
		{"ERROR: Sign in to confirm your age", ErrAgeRestricted},
		{"ERROR: Unsupported URL: https://example.com", ErrUnsupportedPlatform},
		{"/usr/bin/python3: No module named yt_dlp", ErrToolUnavailable},
		{"Read timed out", ErrTimeout},
		{"something odd", ErrYTDLPFailed},
	}

	for _, tc := range cases {
		if got := MapYTDLPError(tc.stderr); got != tc.want {
			t.Errorf("MapYTDLPError(%q) = %v, want %v", tc.stderr, got, tc.want)
		}
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid url", ErrInvalidURL, http.StatusBadRequest},
		{"unsupported", fmt.Errorf("wrap: %w", ErrUnsupportedPlatform), http.StatusBadRequest},
		{"not implemented", ErrNotYetImplemented, http.StatusServiceUnavailable},
		{"extraction", &ExtractionError{Platform: "youtube", Reason: "both sources failed"}, http.StatusNotFound},
		{"private via process", &ProcessError{ExitCode: 1, Stderr: "Private video"}, http.StatusNotFound},
		{"parse", &ParseError{Stderr: "boom"}, http.StatusInternalServerError},
		{"tool", ErrToolUnavailable, http.StatusInternalServerError},
		{"job missing", ErrJobNotFound, http.StatusNotFound},
		{"job terminal", ErrJobTerminal, http.StatusConflict},
		{"job not ready", ErrJobNotReady, http.StatusBadRequest},
		{"unknown", errors.New("x"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HTTPStatus(tc.err); got != tc.want {
				t.Fatalf("HTTPStatus() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestParseErrorCarriesStderr(t *testing.T) {
	err := error(&ParseError{Stderr: "WARNING: unable to download webpage"})
	if !errors.Is(err, ErrParse) {
		t.Fatal("ParseError should match ErrParse")
	}
	if !strings.Contains(err.Error(), "unable to download webpage") {
		t.Fatalf("stderr missing from message: %q", err.Error())
	}
}

func TestFirstSuccess(t *testing.T) {
	ctx := context.Background()
	var calls []string
	step := func(name string, err error) Strategy[string] {
		return Strategy[string]{Name: name, Run: func(context.Context) (string, error) {
			calls = append(calls, name)
			return name, err
		}}
	}

	got, err := FirstSuccess(ctx, step("primary", errors.New("down")), step("oembed", nil), step("stub", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "oembed" {
		t.Fatalf("got %q, want oembed", got)
	}
	if strings.Join(calls, ",") != "primary,oembed" {
		t.Fatalf("strategies after the winner must not run, calls=%v", calls)
	}

	sentinel := errors.New("second")
	_, err = FirstSuccess(ctx, step("a", errors.New("first")), step("b", sentinel))
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if !errors.Is(err, sentinel) {
		t.Fatalf("aggregated error should wrap every failure: %v", err)
	}
	if !strings.Contains(err.Error(), "a: first") || !strings.Contains(err.Error(), "b: second") {
		t.Fatalf("aggregated message = %q", err.Error())
	}

	if _, err := FirstSuccess[string](ctx); !errors.Is(err, ErrNoStrategies) {
		t.Fatalf("empty list error = %v", err)
	}
}

func TestNormalizeURL(t *testing.T) {
	got := NormalizeURL(" https://www.youtube.com/watch?v=abc&utm_source=x&si=123 ")
	if got != "https://www.youtube.com/watch?v=abc" {
		t.Fatalf("NormalizeURL = %q", got)
	}
	if got := NormalizeURL("not a url"); got != "not a url" {
		t.Fatalf("NormalizeURL should leave garbage untouched, got %q", got)
	}
}

func TestIsValidURL(t *testing.T) {
	for in, want := range map[string]bool{
		"https://youtu.be/abc":  true,
		"http://x.com/a/status": true,
		"ftp://youtube.com/x":   false,
		"not a url":             false,
		"":                      false,
		"https://":              false,
	} {
		if got := IsValidURL(in); got != want {
			t.Errorf("IsValidURL(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestStripTags(t *testing.T) {
	got := StripTags(`<blockquote><p>Hello <a href="x">world</a></p></blockquote>`, 8)
	if got != "Hello wo" {
		t.Fatalf("StripTags = %q", got)
	}
}
