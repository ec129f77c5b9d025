package routes

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/page-cache/page-cache/internal/cache"
	"github.com/page-cache/page-cache/internal/config"
	"github.com/page-cache/page-cache/internal/pagecache"
	"github.com/page-cache/page-cache/internal/sweeper"
)

// RegisterAdminRoutes 暴露 /-/page-cache 管理接口，供运维脚本或计划任务触发失效与清理。
func RegisterAdminRoutes(app *fiber.App, pc *pagecache.Cache, logger *logrus.Logger) {
	if app == nil || pc == nil {
		return
	}

	app.Post("/-/page-cache/forget", func(c fiber.Ctx) error {
		key := strings.TrimSpace(c.Query("key"))
		if key == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "key_required"})
		}
		removed, err := pc.Forget(c.Context(), key)
		if err != nil {
			return renderError(c, logger, "admin_forget", err)
		}
		return c.JSON(fiber.Map{"key": key, "removed": removed})
	})

	app.Post("/-/page-cache/clear", func(c fiber.Ctx) error {
		if err := pc.ClearAll(c.Context()); err != nil {
			return renderError(c, logger, "admin_clear", err)
		}
		return c.JSON(fiber.Map{"cleared": true})
	})

	// category 为空时按超时规则清理，否则按关键字清理，对应 CLI 的 refresh [prefixKey]。
	app.Post("/-/page-cache/refresh", func(c fiber.Ctx) error {
		category := strings.TrimSpace(c.Query("category"))
		var (
			report sweeper.Report
			err    error
		)
		mode := "expired"
		if category == "" {
			report, err = pc.SweepExpired(c.Context())
		} else {
			mode = "category"
			report, err = pc.SweepCategory(c.Context(), category)
		}
		if err != nil {
			return renderError(c, logger, "admin_refresh", err)
		}
		return c.JSON(refreshPayload{Mode: mode, Category: category, Report: report})
	})

	app.Get("/-/page-cache/entry", func(c fiber.Ctx) error {
		path := c.Query("path")
		if path == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "path_required"})
		}
		req := splitTarget(path)
		dir, file, err := pc.DirectoryAndFile(req)
		if err != nil {
			return renderError(c, logger, "admin_entry", err)
		}
		store, err := pc.Store()
		if err != nil {
			return renderError(c, logger, "admin_entry", err)
		}
		rel, _ := pagecache.Key(req)
		_, entry, err := store.Read(c.Context(), cache.JoinPaths(rel, file))
		if err != nil {
			return renderError(c, logger, "admin_entry", err)
		}
		return c.JSON(entryPayload{Directory: dir, File: file, FileEntry: *entry})
	})
}

type refreshPayload struct {
	Mode     string `json:"mode"`
	Category string `json:"category,omitempty"`
	sweeper.Report
}

type entryPayload struct {
	Directory string `json:"directory"`
	File      string `json:"file"`
	cache.FileEntry
}

// splitTarget 把 "/path?query" 形式的目标拆成请求结构，查询串保持原样。
func splitTarget(target string) pagecache.Request {
	req := pagecache.Request{Method: fiber.MethodGet, Path: target}
	if idx := strings.IndexByte(target, '?'); idx >= 0 {
		req.Path, req.RawQuery = target[:idx], target[idx+1:]
	}
	if !strings.HasPrefix(req.Path, "/") {
		req.Path = "/" + req.Path
	}
	return req
}

func renderError(c fiber.Ctx, logger *logrus.Logger, action string, err error) error {
	status := fiber.StatusInternalServerError
	code := "internal_error"
	switch {
	case errors.Is(err, cache.ErrNotFound):
		status, code = fiber.StatusNotFound, "entry_not_found"
	case errors.Is(err, cache.ErrOutsideRoot), errors.Is(err, cache.ErrInvalidPath),
		errors.Is(err, pagecache.ErrEmptyKey), errors.Is(err, sweeper.ErrEmptyCategory):
		status, code = fiber.StatusBadRequest, "invalid_target"
	case errors.Is(err, config.ErrCacheRootUnset):
		status, code = fiber.StatusServiceUnavailable, "cache_root_unset"
	}
	if logger != nil && status >= fiber.StatusInternalServerError {
		logger.WithFields(logrus.Fields{"action": action}).WithError(err).Error("page cache admin request failed")
	}
	return c.Status(status).JSON(fiber.Map{"error": code})
}
