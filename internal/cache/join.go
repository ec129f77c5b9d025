package cache

import "strings"

// JoinPaths 以 "/" 拼接路径：逐段裁掉首尾斜杠、过滤空段，
// 并保持首段的绝对/相对属性（首段以 "/" 开头时结果同样以 "/" 开头）。
func JoinPaths(paths ...string) string {
	if len(paths) == 0 {
		return ""
	}

	trimmed := make([]string, 0, len(paths))
	for _, p := range paths {
		if t := strings.Trim(p, "/"); t != "" {
			trimmed = append(trimmed, t)
		}
	}

	joined := strings.Join(trimmed, "/")
	if strings.HasPrefix(paths[0], "/") {
		return "/" + joined
	}
	return joined
}
