package config

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// defaultTimeout 是兜底规则的默认时长：页面最晚一个月刷新一次。
const defaultTimeout = 30 * 24 * time.Hour

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)
	v.SetEnvPrefix("PAGE_CACHE")
	if err := v.BindEnv("Enabled"); err != nil {
		return nil, fmt.Errorf("绑定环境变量失败: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 未声明任何 [[Timeout]] 时使用默认兜底规则；显式声明空数组同样视为未声明。
	if !v.IsSet("Timeout") || len(cfg.Timeouts) == 0 {
		cfg.Timeouts = DefaultTimeouts()
	}
	applyGlobalDefaults(&cfg.Global)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DefaultTimeouts 返回默认的超时规则列表。
func DefaultTimeouts() []TimeoutRule {
	return []TimeoutRule{{Category: "", TTL: Duration(defaultTimeout)}}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Enabled", true)
	v.SetDefault("CacheRoot", "")
	v.SetDefault("PublicPath", "")
	v.SetDefault("AllowList", []string{})
	v.SetDefault("DenyList", []string{})
	v.SetDefault("Transform", "")
	v.SetDefault("MetaTag", "page-cache")
	v.SetDefault("ListenPort", 5080)
	v.SetDefault("SweepInterval", "10m")
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5080
	}
	if g.SweepInterval.DurationValue() == 0 {
		g.SweepInterval = Duration(10 * time.Minute)
	}
	if g.MetaTag == "" {
		g.MetaTag = "page-cache"
	}
	if g.LogLevel == "" {
		g.LogLevel = "info"
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
