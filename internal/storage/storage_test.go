package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestFindByJobID(t *testing.T) {
	dir := t.TempDir()
	fm := NewFileManager(dir, zaptest.NewLogger(t))

	for _, name := range []string{"job-1.mp4.part", "job-1.mp4", "job-2.webm"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := fm.FindByJobID("job-1")
	if err != nil {
		t.Fatalf("FindByJobID: %v", err)
	}
	if filepath.Base(got) != "job-1.mp4" {
		t.Errorf("got %s, want job-1.mp4", got)
	}

	if _, err := fm.FindByJobID("job-3"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("missing job: err = %v", err)
	}

	missing := NewFileManager(filepath.Join(dir, "nope"), zaptest.NewLogger(t))
	if _, err := missing.FindByJobID("job-1"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("missing dir: err = %v", err)
	}
}

func TestDeleteFile(t *testing.T) {
	dir := t.TempDir()
	fm := NewFileManager(dir, zaptest.NewLogger(t))
	path := filepath.Join(dir, "a.mp4")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	if size, err := fm.GetFileSize(path); err != nil || size != 4 {
		t.Fatalf("GetFileSize = %d, %v", size, err)
	}
	if err := fm.DeleteFile(path); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if fm.FileExists(path) {
		t.Error("file should be gone")
	}
	if err := fm.DeleteFile(path); err != nil {
		t.Errorf("second delete should be a no-op: %v", err)
	}
}

func TestOutputTemplate(t *testing.T) {
	fm := NewFileManager("downloads", zaptest.NewLogger(t))
	if got := fm.OutputTemplate("abc"); got != filepath.Join("downloads", "abc.%(ext)s") {
		t.Errorf("template = %s", got)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"Hello World", "Hello World"},
		{`a/b\c:d*e?f"g<h>i|j`, "a_b_c_d_e_f_g_h_i_j"},
		{"  ..title..  ", "title"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := strings.Repeat("视", 100)
	if got := SanitizeFilename(long); len(got) > maxFilenameLen || !strings.HasPrefix(long, got) {
		t.Errorf("long name not truncated on rune boundary: %d bytes", len(got))
	}
}

func TestDownloadFilename(t *testing.T) {
	if got := DownloadFilename("My: Video", "/d/job.mp4", "job"); got != "My_ Video.mp4" {
		t.Errorf("got %q", got)
	}
	if got := DownloadFilename("", "/d/job.mp3", "job"); got != "job.mp3" {
		t.Errorf("fallback got %q", got)
	}
	if ct := ContentType("x.mp3"); ct != "audio/mpeg" {
		t.Errorf("content type = %q", ct)
	}
}
