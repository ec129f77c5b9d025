package server

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/page-cache/page-cache/internal/logging"
	"github.com/page-cache/page-cache/internal/pagecache"
)

// AppOptions controls how the Fiber application is assembled.
type AppOptions struct {
	Logger *logrus.Logger
	Cache  *pagecache.Cache
}

const contextKeyRequestID = "_pagecache_request_id"

// NewApp builds a Fiber application with recover, request-id and page-cache
// middlewares. Callers register their own named routes on the returned app.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("page cache is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())
	app.Use(Middleware(opts.Cache, opts.Logger))

	return app, nil
}

// requestIDMiddleware 为每个请求生成 ID，并写入响应头 X-Request-ID。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// Middleware 在处理链结束后把响应交给 CacheIfNeeded。
// 缓存失败只记录日志，不影响已经生成的响应。
func Middleware(pc *pagecache.Cache, logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return err
		}
		if !pc.Policy().Enabled() || isDiagnosticsPath(string(c.Request().URI().Path())) {
			return nil
		}

		req := requestFromContext(c)
		resp := pagecache.Response{
			StatusCode: c.Response().StatusCode(),
			Body:       c.Response().Body(),
		}
		written, err := pc.CacheIfNeeded(c.Context(), req, resp)
		if err != nil {
			fields := logging.EntryFields("cache_write", req.RouteName, req.Path, "")
			fields["request_id"] = RequestID(c)
			logger.WithFields(fields).WithError(err).Warn("page cache write failed")
			return nil
		}
		if written {
			c.Set("X-Page-Cache", "stored")
		}
		return nil
	}
}

func requestFromContext(c fiber.Ctx) pagecache.Request {
	uri := c.Request().URI()
	req := pagecache.Request{
		Method:   c.Method(),
		Path:     string(uri.PathOriginal()),
		RawQuery: string(uri.QueryString()),
	}
	if route := c.Route(); route != nil {
		req.RouteName = route.Name
	}
	// PathOriginal 含有查询串时只保留路径部分。
	if idx := strings.IndexByte(req.Path, '?'); idx >= 0 {
		req.Path = req.Path[:idx]
	}
	return req
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func isDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, "/-/")
}
