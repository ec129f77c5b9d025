package pagecache

import (
	"net/http"

	"github.com/gobwas/glob"
	"github.com/sirupsen/logrus"

	"github.com/page-cache/page-cache/internal/config"
)

// routeRule 保存原始模式及编译结果；编译失败的规则 matcher 为 nil，永不命中。
type routeRule struct {
	pattern string
	matcher glob.Glob
}

// Policy 是纯判定组件：根据方法、状态码与路由名的白/黑名单决定是否缓存。
type Policy struct {
	enabled bool
	allow   []routeRule
	deny    []routeRule
}

// NewPolicy 编译配置中的 AllowList/DenyList。
func NewPolicy(cfg *config.Config, logger *logrus.Logger) *Policy {
	p := &Policy{}
	if cfg == nil {
		return p
	}
	p.enabled = cfg.Global.Enabled
	p.allow = compileRules("allow", cfg.AllowList, logger)
	p.deny = compileRules("deny", cfg.DenyList, logger)
	return p
}

func compileRules(list string, patterns []string, logger *logrus.Logger) []routeRule {
	rules := make([]routeRule, 0, len(patterns))
	for _, pattern := range patterns {
		// 不传分隔符：* 可以跨越任意字符（包括 "." 与 "/"），与 shell fnmatch 一致。
		matcher, err := glob.Compile(pattern)
		if err != nil {
			if logger != nil {
				logger.WithFields(logrus.Fields{
					"action":  "compile_route_rule",
					"list":    list,
					"pattern": pattern,
				}).WithError(err).Warn("malformed route pattern never matches")
			}
			matcher = nil
		}
		rules = append(rules, routeRule{pattern: pattern, matcher: matcher})
	}
	return rules
}

// ShouldCache 仅在请求方法恰为 GET 且响应状态码恰为 200 时返回 true。
func (p *Policy) ShouldCache(req Request, resp Response) bool {
	return req.Method == http.MethodGet && resp.StatusCode == http.StatusOK
}

// CanCache 要求路由名命中白名单且不命中黑名单；缺失路由名视为不可缓存。
func (p *Policy) CanCache(req Request) bool {
	if !p.enabled {
		return false
	}
	return p.Allowed(req.RouteName)
}

// Allowed 对单个路由名执行 allow/deny 判定，deny 优先；空白名单意味着不缓存任何路由。
func (p *Policy) Allowed(routeName string) bool {
	if routeName == "" {
		return false
	}
	return matchAny(p.allow, routeName) && !matchAny(p.deny, routeName)
}

// Enabled 返回全局缓存开关。
func (p *Policy) Enabled() bool {
	return p.enabled
}

func matchAny(rules []routeRule, name string) bool {
	for _, rule := range rules {
		if rule.matcher != nil && rule.matcher.Match(name) {
			return true
		}
	}
	return false
}
