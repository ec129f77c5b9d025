package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrCacheRootUnset 表示既没有显式 CacheRoot，也无法从 PublicPath 推导默认目录。
var ErrCacheRootUnset = errors.New("cache root not set")

// defaultCacheDirName 是基于 PublicPath 推导缓存根目录时追加的子目录名。
const defaultCacheDirName = "page-cache"

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述进程级参数：缓存目录、开关、日志与后台任务。
type GlobalConfig struct {
	Enabled       bool     `mapstructure:"Enabled"`
	CacheRoot     string   `mapstructure:"CacheRoot"`
	PublicPath    string   `mapstructure:"PublicPath"`
	Transform     string   `mapstructure:"Transform"`
	MetaTag       string   `mapstructure:"MetaTag"`
	ListenPort    int      `mapstructure:"ListenPort"`
	SweepInterval Duration `mapstructure:"SweepInterval"`
	LogLevel      string   `mapstructure:"LogLevel"`
	LogFilePath   string   `mapstructure:"LogFilePath"`
	LogMaxSize    int      `mapstructure:"LogMaxSize"`
	LogMaxBackups int      `mapstructure:"LogMaxBackups"`
	LogCompress   bool     `mapstructure:"LogCompress"`
}

// TimeoutRule 将相对路径前缀映射到过期时长；Category 为空表示兜底规则。
type TimeoutRule struct {
	Category string   `mapstructure:"Category"`
	TTL      Duration `mapstructure:"TTL"`
}

// IsPlaceholder 表示 “空分类 + 零时长” 的占位规则，清理时直接跳过。
func (r TimeoutRule) IsPlaceholder() bool {
	return r.Category == "" && r.TTL.DurationValue() == 0
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global    GlobalConfig  `mapstructure:",squash"`
	AllowList []string      `mapstructure:"AllowList"`
	DenyList  []string      `mapstructure:"DenyList"`
	Timeouts  []TimeoutRule `mapstructure:"Timeout"`
}

// ResolveCacheRoot 按 “显式 CacheRoot → PublicPath/page-cache → 报错” 的顺序计算缓存根目录。
func (c *Config) ResolveCacheRoot() (string, error) {
	if c == nil {
		return "", ErrCacheRootUnset
	}
	base := strings.TrimSpace(c.Global.CacheRoot)
	if base == "" {
		public := strings.TrimSpace(c.Global.PublicPath)
		if public == "" {
			return "", ErrCacheRootUnset
		}
		base = filepath.Join(public, defaultCacheDirName)
	}

	abs, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("无法解析缓存目录: %w", err)
	}
	return abs, nil
}
