package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"github.com/sirupsen/logrus"
)

var supportedLogLevels = map[string]struct{}{
	"trace": {},
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
	"fatal": {},
	"panic": {},
}

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
// 缓存根目录不在此处强制要求：宿主环境的 PublicPath 可能要到首次使用时才确定。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.SweepInterval.DurationValue() < 0 {
		return newFieldError("Global.SweepInterval", "不能为负数")
	}
	if _, ok := supportedLogLevels[strings.ToLower(g.LogLevel)]; !ok {
		return newFieldError("Global.LogLevel", "不支持的日志级别: "+g.LogLevel)
	}
	if g.LogMaxSize < 0 || g.LogMaxBackups < 0 {
		return newFieldError("Global.LogMaxSize/LogMaxBackups", "不能为负数")
	}

	for i, pattern := range c.AllowList {
		if err := validatePattern(pattern); err != nil {
			return fmt.Errorf("%s: %w", listField("AllowList", i), err)
		}
	}
	for i, pattern := range c.DenyList {
		if err := validatePattern(pattern); err != nil {
			return fmt.Errorf("%s: %w", listField("DenyList", i), err)
		}
	}

	seen := map[string]struct{}{}
	for i, rule := range c.Timeouts {
		if rule.TTL.DurationValue() < 0 {
			return newFieldError(timeoutField(i, rule.Category, "TTL"), "不能为负数")
		}
		key := strings.ToLower(rule.Category)
		if _, dup := seen[key]; dup && !rule.IsPlaceholder() {
			// 重复分类不会报错：首条规则生效，后续规则永远不会命中。
			logrus.WithFields(logrus.Fields{
				"action":   "config_validate",
				"category": rule.Category,
			}).Warn("duplicate timeout category is shadowed")
		}
		seen[key] = struct{}{}
	}

	return nil
}

// validatePattern 只拒绝空白模式；语法错误的 glob 在匹配期视为不命中，这里仅提示。
func validatePattern(pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return errors.New("模式不能为空")
	}
	if _, err := glob.Compile(pattern); err != nil {
		logrus.WithFields(logrus.Fields{
			"action":  "config_validate",
			"pattern": pattern,
		}).Warnf("malformed route pattern never matches: %v", err)
	}
	return nil
}
