package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// EntryFields 描述一次缓存写入/删除涉及的路由与文件，供写入日志复用。
func EntryFields(action, routeName, requestPath, file string) logrus.Fields {
	return logrus.Fields{
		"action":       action,
		"route_name":   routeName,
		"request_path": requestPath,
		"file":         file,
	}
}

// SweepFields 提供清理任务的模式与统计字段。
func SweepFields(mode string, scanned, deleted, failed int) logrus.Fields {
	return logrus.Fields{
		"action":  "sweep",
		"mode":    mode,
		"scanned": scanned,
		"deleted": deleted,
		"failed":  failed,
	}
}
