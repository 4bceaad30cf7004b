package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/rkobroo/Ownrkoapi/internal/config"
	"github.com/rkobroo/Ownrkoapi/internal/utils"
)

// Locator 按候选列表查找可用的 yt-dlp 调用方式
type Locator struct {
	candidates  [][]string
	installCmd  []string
	autoInstall bool
	logger      *zap.Logger

	lookPath func(file string) (string, error)
	probe    func(ctx context.Context, argv []string) error
	install  func(ctx context.Context, argv []string) error

	mu               sync.Mutex
	resolved         []string
	installAttempted bool
}

// NewLocator 创建查找器
func NewLocator(cfg *config.YTDLPConfig, logger *zap.Logger) *Locator {
	autoInstall := cfg.AutoInstall != nil && *cfg.AutoInstall
	return &Locator{
		candidates:  cfg.CandidateCommands(),
		installCmd:  strings.Fields(cfg.InstallCommand),
		autoInstall: autoInstall,
		logger:      logger,
		lookPath:    exec.LookPath,
		probe:       runVersionProbe,
		install:     runInstall,
	}
}

// Command 返回可执行的 argv 前缀, 如 ["python3", "-m", "yt_dlp"]
func (l *Locator) Command(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.resolved != nil {
		return append([]string(nil), l.resolved...), nil
	}

	argv, tried := l.scan(ctx)
	if argv != nil {
		return l.remember(argv), nil
	}

	// 生产环境: 安装一次后重试同一候选列表
	if l.autoInstall && !l.installAttempted && len(l.installCmd) > 0 {
		l.installAttempted = true
		l.logger.Warn("yt-dlp not found, installing at runtime",
			zap.String("command", strings.Join(l.installCmd, " ")))

		if err := l.install(ctx, l.installCmd); err != nil {
			l.logger.Error("runtime yt-dlp installation failed", zap.Error(err))
		} else {
			l.logger.Info("yt-dlp installed at runtime")
			if argv, _ = l.scan(ctx); argv != nil {
				return l.remember(argv), nil
			}
		}
	}

	return nil, fmt.Errorf("%w: tried %s", utils.ErrToolUnavailable, strings.Join(tried, ", "))
}

// Reset 清除已解析的命令, 下次调用重新查找
func (l *Locator) Reset() {
	l.mu.Lock()
	l.resolved = nil
	l.mu.Unlock()
}

func (l *Locator) scan(ctx context.Context) ([]string, []string) {
	tried := make([]string, 0, len(l.candidates))
	for _, candidate := range l.candidates {
		name := strings.Join(candidate, " ")
		tried = append(tried, name)

		path, err := l.lookPath(candidate[0])
		if err != nil {
			l.logger.Debug("yt-dlp candidate not on PATH", zap.String("candidate", name))
			continue
		}

		argv := append([]string{path}, candidate[1:]...)
		if err := l.probe(ctx, argv); err != nil {
			l.logger.Debug("yt-dlp candidate probe failed", zap.String("candidate", name), zap.Error(err))
			continue
		}
		return argv, tried
	}
	return nil, tried
}

func (l *Locator) remember(argv []string) []string {
	l.resolved = argv
	l.logger.Info("using yt-dlp", zap.String("command", strings.Join(argv, " ")))
	return append([]string(nil), argv...)
}

// runVersionProbe 执行 --version 验证候选可用
func runVersionProbe(ctx context.Context, argv []string) error {
	args := append(append([]string(nil), argv[1:]...), "--version")
	out, err := exec.CommandContext(ctx, argv[0], args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func runInstall(ctx context.Context, argv []string) error {
	out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		return errors.New(strings.TrimSpace(string(out)) + ": " + err.Error())
	}
	return nil
}
