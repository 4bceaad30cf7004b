package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig              `yaml:"server"`
	Redis     RedisConfig               `yaml:"redis"`
	YTDLP     YTDLPConfig               `yaml:"ytdlp"`
	Cache     CacheConfig               `yaml:"cache"`
	Platforms map[string]PlatformConfig `yaml:"platforms"`
	OEmbed    OEmbedConfig              `yaml:"oembed"`
	Summary   SummaryConfig             `yaml:"summary"`
	Storage   StorageConfig             `yaml:"storage"`
	Worker    WorkerConfig              `yaml:"worker"`
	Cleanup   CleanupConfig             `yaml:"cleanup"`
	CORS      CORSConfig                `yaml:"cors"`
	RateLimit RateLimitConfig           `yaml:"rate_limit"`
	Logging   LoggingConfig             `yaml:"logging"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port           int           `yaml:"port"`
	Mode           string        `yaml:"mode"` // debug, release
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	PublicBaseURL  string        `yaml:"public_base_url"` // 生成下载链接用
}

// IsProduction release 模式视为生产环境
func (c *ServerConfig) IsProduction() bool {
	return c.Mode == "release"
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// YTDLPConfig yt-dlp配置
type YTDLPConfig struct {
	Candidates     []string `yaml:"candidates"`      // 按顺序尝试, 如 "python3 -m yt_dlp"
	InstallCommand string   `yaml:"install_command"` // 生产环境找不到时执行一次
	AutoInstall    *bool    `yaml:"auto_install"`    // 为空时跟随 server.mode
	MaxConcurrent  int      `yaml:"max_concurrent"`  // 最大并发解析数
	CookiesDir     string   `yaml:"cookies_dir"`
	Proxy          string   `yaml:"proxy"`        // 代理地址
	DefaultArgs    []string `yaml:"default_args"` // 默认参数
}

// CandidateCommands 将候选命令拆分为 argv
func (c *YTDLPConfig) CandidateCommands() [][]string {
	commands := make([][]string, 0, len(c.Candidates))
	for _, candidate := range c.Candidates {
		if fields := strings.Fields(candidate); len(fields) > 0 {
			commands = append(commands, fields)
		}
	}
	return commands
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	TTL     int  `yaml:"ttl"` // 缓存TTL(秒)
}

// GetCacheTTL 获取缓存TTL时间
func (c *CacheConfig) GetCacheTTL() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

// PlatformConfig 平台特定配置
type PlatformConfig struct {
	Enabled    bool     `yaml:"enabled"`
	ExtraArgs  []string `yaml:"extra_args"`
	CookieFile string   `yaml:"cookie_file"`
}

// OEmbedConfig oEmbed 接口配置
type OEmbedConfig struct {
	InstagramAccessToken string `yaml:"instagram_access_token"`
	UserAgent            string `yaml:"user_agent"`
}

// SummaryConfig 摘要生成配置
type SummaryConfig struct {
	Provider string `yaml:"provider"` // default, openai
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
}

// StorageConfig 任务存储与下载目录配置
type StorageConfig struct {
	Driver       string `yaml:"driver"` // memory, sqlite, postgres
	DSN          string `yaml:"dsn"`
	DownloadsDir string `yaml:"downloads_dir"`
	BufferSize   int    `yaml:"buffer_size"`
}

// WorkerConfig Worker 池配置
type WorkerConfig struct {
	PoolSize      int `yaml:"pool_size"`
	MaxConcurrent int `yaml:"max_concurrent"`
}

// CleanupConfig 清理配置
type CleanupConfig struct {
	Enabled   bool `yaml:"enabled"`
	Interval  int  `yaml:"interval"`  // 秒
	Retention int  `yaml:"retention"` // 终态任务保留时长(秒)
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	GlobalRPS int `yaml:"global_rps"`
	IPRPS     int `yaml:"ip_rps"`
	Burst     int `yaml:"burst"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, console
}

// LoadConfig 加载配置文件; configPath 为空时仅使用环境变量与默认值
func LoadConfig(configPath string) (*Config, error) {
	var cfg Config

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv 从环境变量覆盖配置
func applyEnv(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		cfg.Server.Mode = mode
	}
	if baseURL := os.Getenv("PUBLIC_BASE_URL"); baseURL != "" {
		cfg.Server.PublicBaseURL = baseURL
	}

	// Redis
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		cfg.Redis.Addr = redisAddr
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		cfg.Redis.Password = redisPassword
	}

	// 存储
	if driver := os.Getenv("STORAGE_DRIVER"); driver != "" {
		cfg.Storage.Driver = driver
	}
	if dsn := os.Getenv("STORAGE_DSN"); dsn != "" {
		cfg.Storage.DSN = dsn
	}
	if dir := os.Getenv("DOWNLOADS_DIR"); dir != "" {
		cfg.Storage.DownloadsDir = dir
	}

	// yt-dlp: 显式指定的二进制排在候选列表最前
	if bin := os.Getenv("YTDLP_BINARY"); bin != "" {
		cfg.YTDLP.Candidates = append([]string{bin}, cfg.YTDLP.Candidates...)
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.Summary.APIKey = key
	}
	if token := os.Getenv("INSTAGRAM_ACCESS_TOKEN"); token != "" {
		cfg.OEmbed.InstagramAccessToken = token
	}
}

// applyDefaults 设置默认值
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = 1 << 20
	}
	if cfg.Server.PublicBaseURL == "" {
		cfg.Server.PublicBaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}

	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}

	if len(cfg.YTDLP.Candidates) == 0 {
		cfg.YTDLP.Candidates = []string{"yt-dlp", "python3 -m yt_dlp", "python -m yt_dlp"}
	}
	if cfg.YTDLP.InstallCommand == "" {
		cfg.YTDLP.InstallCommand = "python3 -m pip install --user yt-dlp"
	}
	if cfg.YTDLP.AutoInstall == nil {
		auto := cfg.Server.IsProduction()
		cfg.YTDLP.AutoInstall = &auto
	}
	if cfg.YTDLP.MaxConcurrent == 0 {
		cfg.YTDLP.MaxConcurrent = 10
	}

	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 3600
	}

	if cfg.OEmbed.InstagramAccessToken == "" {
		cfg.OEmbed.InstagramAccessToken = "guest"
	}

	if cfg.Summary.Provider == "" {
		cfg.Summary.Provider = "default"
	}
	if cfg.Summary.BaseURL == "" {
		cfg.Summary.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Summary.Model == "" {
		cfg.Summary.Model = "gpt-4o"
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "memory"
	}
	if cfg.Storage.DownloadsDir == "" {
		cfg.Storage.DownloadsDir = "downloads"
	}
	if cfg.Storage.BufferSize == 0 {
		cfg.Storage.BufferSize = 32768 // 32KB
	}

	if cfg.Worker.PoolSize == 0 {
		cfg.Worker.PoolSize = 4
	}
	if cfg.Worker.MaxConcurrent == 0 {
		cfg.Worker.MaxConcurrent = cfg.Worker.PoolSize
	}

	if cfg.Cleanup.Interval == 0 {
		cfg.Cleanup.Interval = 600
	}
	if cfg.Cleanup.Retention == 0 {
		cfg.Cleanup.Retention = 86400
	}

	if cfg.RateLimit.GlobalRPS == 0 {
		cfg.RateLimit.GlobalRPS = 200
	}
	if cfg.RateLimit.IPRPS == 0 {
		cfg.RateLimit.IPRPS = 10
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 20
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate 校验枚举型配置
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver != "memory" && c.Storage.DSN == "" {
		return fmt.Errorf("storage driver %q requires a dsn", c.Storage.Driver)
	}
	switch c.Summary.Provider {
	case "default", "openai":
	default:
		return fmt.Errorf("unknown summary provider %q", c.Summary.Provider)
	}
	return nil
}

// PlatformEnabled 平台是否启用; 未配置的平台默认启用
func (c *Config) PlatformEnabled(platform string) bool {
	pc, ok := c.Platforms[platform]
	if !ok {
		return true
	}
	return pc.Enabled
}

// PlatformArgs 平台额外的 yt-dlp 参数
func (c *Config) PlatformArgs() map[string][]string {
	args := make(map[string][]string, len(c.Platforms))
	for name, pc := range c.Platforms {
		if len(pc.ExtraArgs) > 0 {
			args[name] = pc.ExtraArgs
		}
	}
	return args
}

// PlatformCookies 平台静态 cookie 文件
func (c *Config) PlatformCookies() map[string]string {
	cookies := make(map[string]string, len(c.Platforms))
	for name, pc := range c.Platforms {
		if pc.CookieFile != "" {
			cookies[name] = pc.CookieFile
		}
	}
	return cookies
}
