package summary

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/rkobroo/Ownrkoapi/internal/config"
	"github.com/rkobroo/Ownrkoapi/internal/utils"
)

// Summarizer 摘要与要点生成
type Summarizer interface {
	Summarize(ctx context.Context, title, description string) (string, error)
	MainPoints(ctx context.Context, title, description string) ([]string, error)
}

const (
	verbatimWordLimit = 30
	summaryWords      = 25
	maxMainPoints     = 3
)

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

// Default 基于规则的摘要, 不依赖外部服务
type Default struct{}

// Summarize "<title>. <description>" 不超过 30 词原样返回, 否则取前 25 词加省略号
func (Default) Summarize(_ context.Context, title, description string) (string, error) {
	combined := title + ". " + description
	words := strings.Fields(combined)
	if len(words) <= verbatimWordLimit {
		return combined, nil
	}
	return strings.Join(words[:summaryWords], " ") + "...", nil
}

// MainPoints 按句末标点切分描述, 取前 3 个非空句子
func (Default) MainPoints(_ context.Context, _, description string) ([]string, error) {
	points := make([]string, 0, maxMainPoints)
	for _, sentence := range sentenceSplit.Split(description, -1) {
		if s := strings.TrimSpace(sentence); s != "" {
			points = append(points, s)
			if len(points) == maxMainPoints {
				break
			}
		}
	}
	return points, nil
}

// Provider 带名称的摘要器, 名称出现在聚合错误中
type Provider struct {
	Name string
	Summarizer
}

// Fallback 依次尝试多个 Summarizer, 第一个成功者胜出
type Fallback struct {
	chain  []Provider
	logger *zap.Logger
}

// NewFallback 创建组合摘要器; 最后一个通常是 Default
func NewFallback(logger *zap.Logger, providers ...Provider) *Fallback {
	return &Fallback{chain: providers, logger: logger}
}

// Summarize 组合摘要
func (f *Fallback) Summarize(ctx context.Context, title, description string) (string, error) {
	strategies := make([]utils.Strategy[string], 0, len(f.chain))
	for _, n := range f.chain {
		s := n.Summarizer
		strategies = append(strategies, utils.Strategy[string]{
			Name: n.Name,
			Run: func(ctx context.Context) (string, error) {
				return s.Summarize(ctx, title, description)
			},
		})
	}
	out, err := utils.FirstSuccess(ctx, strategies...)
	if err != nil {
		f.logger.Warn("summary generation failed", zap.Error(err))
		return "", utils.ErrSummaryGeneration
	}
	return out, nil
}

// MainPoints 组合要点
func (f *Fallback) MainPoints(ctx context.Context, title, description string) ([]string, error) {
	strategies := make([]utils.Strategy[[]string], 0, len(f.chain))
	for _, n := range f.chain {
		s := n.Summarizer
		strategies = append(strategies, utils.Strategy[[]string]{
			Name: n.Name,
			Run: func(ctx context.Context) ([]string, error) {
				return s.MainPoints(ctx, title, description)
			},
		})
	}
	out, err := utils.FirstSuccess(ctx, strategies...)
	if err != nil {
		f.logger.Warn("main points generation failed", zap.Error(err))
		return nil, utils.ErrSummaryGeneration
	}
	return out, nil
}

// New 根据配置构建摘要器
func New(cfg config.SummaryConfig, httpClient *http.Client, logger *zap.Logger) Summarizer {
	if cfg.Provider == "openai" && cfg.APIKey != "" {
		return NewFallback(logger,
			Provider{Name: "openai", Summarizer: NewOpenAI(cfg, httpClient)},
			Provider{Name: "default", Summarizer: Default{}},
		)
	}
	return Default{}
}
