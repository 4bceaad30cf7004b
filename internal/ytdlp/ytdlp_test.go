package ytdlp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/rkobroo/Ownrkoapi/internal/storage"
	"github.com/rkobroo/Ownrkoapi/internal/utils"
)

// TestHelperProcess 充当假的 yt-dlp 子进程
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) > 0 {
		args = args[1:]
	}

	switch os.Getenv("YTDLP_HELPER_MODE") {
	case "analyze_ok":
		fmt.Println("WARNING: some extractor warning")
		fmt.Println(`{"id":"abc","title":"Test Video","duration":125.0,"uploader":"Chan","view_count":10,` +
			`"formats":[{"format_id":"18","ext":"mp4","height":360}]}`)
	case "analyze_garbage":
		fmt.Println("not json at all")
		fmt.Fprintln(os.Stderr, "WARNING: extractor changed")
	case "private":
		fmt.Fprintln(os.Stderr, "ERROR: [youtube] abc: Private video. Sign in if you've been granted access")
		os.Exit(1)
	case "download_ok":
		var output string
		for i, a := range args {
			if a == "--output" && i+1 < len(args) {
				output = args[i+1]
			}
		}
		fmt.Fprint(os.Stdout, "[download]  10.0% of 10.00MiB at 1.00MiB/s ETA 00:09\r")
		fmt.Fprint(os.Stdout, "[download]  50.0% of 10.00MiB at 2.00MiB/s ETA 00:03\n")
		fmt.Fprintln(os.Stderr, "[download] 100% of 10.00MiB")
		path := strings.Replace(output, "%(ext)s", "mp4", 1)
		if err := os.WriteFile(path, []byte("video"), 0o644); err != nil {
			os.Exit(3)
		}
	case "download_nofile":
		fmt.Println("[download] 100% of 1.00MiB")
	}
}

func helperLocator(t *testing.T, mode string) *Locator {
	t.Helper()
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")
	t.Setenv("YTDLP_HELPER_MODE", mode)
	return &Locator{
		candidates: [][]string{{os.Args[0], "-test.run=TestHelperProcess", "--"}},
		logger:     zaptest.NewLogger(t),
		lookPath:   func(file string) (string, error) { return file, nil },
		probe:      func(context.Context, []string) error { return nil },
		install:    func(context.Context, []string) error { return nil },
	}
}

func TestLocatorOrder(t *testing.T) {
	var probed []string
	l := &Locator{
		candidates: [][]string{{"yt-dlp"}, {"python3", "-m", "yt_dlp"}, {"python", "-m", "yt_dlp"}},
		logger:     zaptest.NewLogger(t),
		lookPath: func(file string) (string, error) {
			if file == "yt-dlp" {
				return "", errors.New("not found")
			}
			return "/usr/bin/" + file, nil
		},
		probe: func(_ context.Context, argv []string) error {
			probed = append(probed, strings.Join(argv, " "))
			if argv[0] == "/usr/bin/python3" {
				return errors.New("No module named yt_dlp")
			}
			return nil
		},
	}

	argv, err := l.Command(context.Background())
	if err != nil {
		t.Fatalf("Command: %v", err)
	}
	if got := strings.Join(argv, " "); got != "/usr/bin/python -m yt_dlp" {
		t.Errorf("argv = %q", got)
	}
	if len(probed) != 2 {
		t.Errorf("probed = %v", probed)
	}

	// 结果被缓存
	if _, err := l.Command(context.Background()); err != nil || len(probed) != 2 {
		t.Errorf("second call should reuse resolved command, probed = %v", probed)
	}
}

func TestLocatorInstallOnce(t *testing.T) {
	installed := false
	installs := 0
	l := &Locator{
		candidates:  [][]string{{"yt-dlp"}},
		installCmd:  []string{"pip", "install", "yt-dlp"},
		autoInstall: true,
		logger:      zaptest.NewLogger(t),
		lookPath: func(file string) (string, error) {
			if !installed {
				return "", errors.New("not found")
			}
			return "/usr/local/bin/" + file, nil
		},
		probe: func(context.Context, []string) error { return nil },
		install: func(context.Context, []string) error {
			installs++
			installed = true
			return nil
		},
	}

	argv, err := l.Command(context.Background())
	if err != nil {
		t.Fatalf("Command: %v", err)
	}
	if argv[0] != "/usr/local/bin/yt-dlp" || installs != 1 {
		t.Errorf("argv = %v installs = %d", argv, installs)
	}
}

func TestLocatorUnavailable(t *testing.T) {
	installs := 0
	l := &Locator{
		candidates:  [][]string{{"yt-dlp"}, {"python3", "-m", "yt_dlp"}},
		installCmd:  []string{"pip", "install", "yt-dlp"},
		autoInstall: true,
		logger:      zaptest.NewLogger(t),
		lookPath:    func(string) (string, error) { return "", errors.New("not found") },
		probe:       func(context.Context, []string) error { return nil },
		install: func(context.Context, []string) error {
			installs++
			return errors.New("pip missing")
		},
	}

	for i := 0; i < 2; i++ {
		_, err := l.Command(context.Background())
		if !errors.Is(err, utils.ErrToolUnavailable) {
			t.Fatalf("err = %v", err)
		}
		if !strings.Contains(err.Error(), "python3 -m yt_dlp") {
			t.Errorf("error should list tried candidates: %v", err)
		}
	}
	if installs != 1 {
		t.Errorf("install attempted %d times, want 1", installs)
	}
}

func TestLocatorNoInstallOutsideProduction(t *testing.T) {
	l := &Locator{
		candidates: [][]string{{"yt-dlp"}},
		installCmd: []string{"pip", "install", "yt-dlp"},
		logger:     zaptest.NewLogger(t),
		lookPath:   func(string) (string, error) { return "", errors.New("not found") },
		install: func(context.Context, []string) error {
			t.Fatal("install must not run")
			return nil
		},
	}
	if _, err := l.Command(context.Background()); !errors.Is(err, utils.ErrToolUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestAnalyze(t *testing.T) {
	w := NewWrapper(helperLocator(t, "analyze_ok"), Options{}, 2, zaptest.NewLogger(t))

	info, err := w.Analyze(context.Background(), "https://www.youtube.com/watch?v=abc")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if info.ID != "abc" || info.Title != "Test Video" || info.Duration != 125 || info.ViewCount != 10 {
		t.Errorf("info = %+v", info)
	}
	if info.ChannelName() != "Chan" || len(info.Formats) != 1 || info.Formats[0].Height != 360 {
		t.Errorf("channel/formats = %q %+v", info.ChannelName(), info.Formats)
	}
}

func TestAnalyzeParseError(t *testing.T) {
	w := NewWrapper(helperLocator(t, "analyze_garbage"), Options{}, 0, zaptest.NewLogger(t))

	_, err := w.Analyze(context.Background(), "https://www.youtube.com/watch?v=abc")
	var pe *utils.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want ParseError", err)
	}
	if !strings.Contains(pe.Stderr, "extractor changed") {
		t.Errorf("stderr not carried: %q", pe.Stderr)
	}
	if !errors.Is(err, utils.ErrParse) {
		t.Error("ParseError should match ErrParse")
	}
}

func TestAnalyzeProcessError(t *testing.T) {
	w := NewWrapper(helperLocator(t, "private"), Options{}, 0, zaptest.NewLogger(t))

	_, err := w.Analyze(context.Background(), "https://www.youtube.com/watch?v=abc")
	var pe *utils.ProcessError
	if !errors.As(err, &pe) || pe.ExitCode != 1 {
		t.Fatalf("err = %v, want ProcessError exit 1", err)
	}
	if !errors.Is(err, utils.ErrVideoPrivate) {
		t.Errorf("err should map to ErrVideoPrivate: %v", err)
	}
}

func TestDownload(t *testing.T) {
	dir := t.TempDir()
	files := storage.NewFileManager(dir, zaptest.NewLogger(t))
	e := NewExecutor(helperLocator(t, "download_ok"), Options{}, files, zaptest.NewLogger(t))

	var (
		mu            sync.Mutex
		events        []Progress
		starts        int
		eventsAtStart = -1
	)
	res, err := e.Download(context.Background(), DownloadRequest{
		JobID:   "job-1",
		URL:     "https://www.youtube.com/watch?v=abc",
		Format:  "mp4",
		Quality: "720p",
		OnStart: func() {
			mu.Lock()
			starts++
			eventsAtStart = len(events)
			mu.Unlock()
		},
	}, func(p Progress) {
		mu.Lock()
		events = append(events, p)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if res.FilePath != filepath.Join(dir, "job-1.mp4") || res.FileSize != 5 {
		t.Errorf("result = %+v", res)
	}
	if starts != 1 || eventsAtStart != 0 {
		t.Errorf("OnStart calls = %d, events before start = %d", starts, eventsAtStart)
	}
	if len(events) != 3 {
		t.Fatalf("events = %+v, want 3", events)
	}
	var sawSpeed bool
	for _, ev := range events {
		if ev.Speed == "2.00MiB/s" && ev.ETA == "00:03" && ev.Percent == 50 {
			sawSpeed = true
		}
	}
	if !sawSpeed {
		t.Errorf("missing 50%% event: %+v", events)
	}
}

func TestDownloadFailure(t *testing.T) {
	files := storage.NewFileManager(t.TempDir(), zaptest.NewLogger(t))
	e := NewExecutor(helperLocator(t, "private"), Options{}, files, zaptest.NewLogger(t))

	_, err := e.Download(context.Background(), DownloadRequest{JobID: "j", URL: "https://youtu.be/abc"}, nil)
	var pe *utils.ProcessError
	if !errors.As(err, &pe) || !strings.Contains(pe.Stderr, "Private video") {
		t.Fatalf("err = %v", err)
	}
}

func TestDownloadLaunchFailureSkipsOnStart(t *testing.T) {
	files := storage.NewFileManager(t.TempDir(), zaptest.NewLogger(t))
	e := NewExecutor(helperLocator(t, "private"), Options{}, files, zaptest.NewLogger(t))
	e.locator.remember([]string{filepath.Join(t.TempDir(), "missing-yt-dlp")})

	started := false
	_, err := e.Download(context.Background(), DownloadRequest{
		JobID:   "j",
		URL:     "https://youtu.be/abc",
		OnStart: func() { started = true },
	}, nil)
	if !errors.Is(err, utils.ErrToolUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if started {
		t.Error("OnStart must not run when the process fails to launch")
	}
}

func TestDownloadMissingFile(t *testing.T) {
	files := storage.NewFileManager(t.TempDir(), zaptest.NewLogger(t))
	e := NewExecutor(helperLocator(t, "download_nofile"), Options{}, files, zaptest.NewLogger(t))

	_, err := e.Download(context.Background(), DownloadRequest{JobID: "j", URL: "https://youtu.be/abc"}, nil)
	if !errors.Is(err, utils.ErrYTDLPFailed) {
		t.Fatalf("err = %v", err)
	}
}

func TestBuildFormatSelector(t *testing.T) {
	tests := []struct {
		format, quality, want string
	}{
		{"mp3", "best", "bestaudio/best"},
		{"mp4", "audio", "bestaudio/best"},
		{"mp4", "720p", "best[height<=720]"},
		{"mp4", "4K", "best[height<=2160]"},
		{"mp4", "best", "best"},
		{"mp4", "", "best"},
	}
	for _, tt := range tests {
		if got := BuildFormatSelector(tt.format, tt.quality); got != tt.want {
			t.Errorf("BuildFormatSelector(%q, %q) = %q, want %q", tt.format, tt.quality, got, tt.want)
		}
	}
}

func TestBuildArgs(t *testing.T) {
	dir := t.TempDir()
	cookies := filepath.Join(dir, "youtube.txt")
	if err := os.WriteFile(cookies, []byte("# cookies"), 0o644); err != nil {
		t.Fatal(err)
	}
	e := &Executor{
		opts: Options{
			Proxy:        "http://proxy:8080",
			CookiesDir:   dir,
			PlatformArgs: map[string][]string{"youtube": {"--extractor-args", "youtube:player_client=web"}},
		},
		files: storage.NewFileManager("out", zaptest.NewLogger(t)),
	}

	args := strings.Join(e.buildArgs(DownloadRequest{JobID: "j1", URL: "https://youtu.be/x", Format: "mp3"}), " ")
	for _, want := range []string{
		"--output " + filepath.Join("out", "j1.%(ext)s"),
		"--format bestaudio/best",
		"--extract-audio --audio-format mp3",
		"--extractor-args youtube:player_client=web",
		"--cookies " + cookies,
		"--proxy http://proxy:8080",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
	if !strings.HasSuffix(args, "https://youtu.be/x") {
		t.Errorf("url must be last: %q", args)
	}
}

func TestParseProgressLine(t *testing.T) {
	tests := []struct {
		line string
		ok   bool
		want Progress
	}{
		{
			line: "[download]  45.2% of 100.00MiB at 2.50MiB/s ETA 00:22",
			ok:   true,
			want: Progress{Percent: 45.2, HasPercent: true, Speed: "2.50MiB/s", ETA: "00:22", Size: "100.00MiB"},
		},
		{
			line: "[download] 100% of ~ 5.00MiB",
			ok:   true,
			want: Progress{Percent: 100, HasPercent: true, Size: "5.00MiB"},
		},
		{
			line: "[download] Unknown size at 500.00KiB/s",
			ok:   true,
			want: Progress{Speed: "500.00KiB/s"},
		},
		{line: "[youtube] abc: Downloading webpage", ok: false},
	}
	for _, tt := range tests {
		got, ok := ParseProgressLine(tt.line)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseProgressLine(%q) = %+v, %v; want %+v, %v", tt.line, got, ok, tt.want, tt.ok)
		}
	}
}

func TestScanLinesCR(t *testing.T) {
	scanner := newLineScanner(strings.NewReader("a\rb\nc\r\nd"))
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	want := []string{"a", "b", "c", "", "d"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Errorf("lines = %q, want %q", lines, want)
	}
}

func TestConsumeLinesDrainsAfterOverlongLine(t *testing.T) {
	input := strings.Repeat("x", 2*1024*1024) + "\n[download]  50.0% of 1.00MiB\n"
	r := strings.NewReader("first\n" + input)

	var lines []string
	err := consumeLines(r, func(line string) { lines = append(lines, line) })
	if !errors.Is(err, bufio.ErrTooLong) {
		t.Fatalf("err = %v, want bufio.ErrTooLong", err)
	}
	if len(lines) != 1 || lines[0] != "first" {
		t.Errorf("lines = %q", lines)
	}
	if r.Len() != 0 {
		t.Errorf("%d bytes left unread", r.Len())
	}
}
