package config

import "fmt"

// FieldError 提供字段路径与错误原因，便于 CLI 向用户反馈。
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// newFieldError 创建包含字段路径与原因的 error，便于 CLI 定位。
func newFieldError(field, reason string) error {
	return FieldError{Field: field, Reason: reason}
}

// listField 拼接列表字段路径，输出 AllowList[0] 形式。
func listField(name string, idx int) string {
	return fmt.Sprintf("%s[%d]", name, idx)
}

// timeoutField 用于拼接超时规则字段路径，方便输出 Timeout[news].TTL 形式。
func timeoutField(idx int, category, field string) string {
	if category == "" {
		return fmt.Sprintf("Timeout[#%d].%s", idx, field)
	}
	return fmt.Sprintf("Timeout[%s].%s", category, field)
}
