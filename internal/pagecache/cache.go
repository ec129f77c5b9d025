package pagecache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/page-cache/page-cache/internal/cache"
	"github.com/page-cache/page-cache/internal/config"
	"github.com/page-cache/page-cache/internal/logging"
	"github.com/page-cache/page-cache/internal/sweeper"
	"github.com/page-cache/page-cache/internal/transform"
)

var (
	// ErrTransform 包装转换钩子的失败；条目不会被写入。
	ErrTransform = errors.New("page transform failed")
	// ErrEmptyKey 表示 Forget 没有给出要删除的键。
	ErrEmptyKey = errors.New("cache key required")
)

// Cache 组合 Policy、Key 映射、Store 与 Sweeper，是宿主调用的唯一入口。
// 配置在构造后只读，Cache 可被多个请求 goroutine 并发使用。
type Cache struct {
	cfg    *config.Config
	logger *logrus.Logger
	policy *Policy
	hook   transform.Hook
	now    func() time.Time

	store func() (cache.Store, error)
}

// Option 调整 Cache 的可选依赖。
type Option func(*Cache)

// WithStore 使用外部构建的 Store，跳过 CacheRoot 解析。
func WithStore(store cache.Store) Option {
	return func(c *Cache) {
		if store != nil {
			c.store = func() (cache.Store, error) { return store, nil }
		}
	}
}

// WithClock 注入时钟，仅影响 SweepExpired。
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithTransform 直接指定转换钩子，覆盖配置中的 Transform 名称。
func WithTransform(hook transform.Hook) Option {
	return func(c *Cache) {
		c.hook = hook
	}
}

// New 构造 Cache。Store 延迟到第一次使用时创建：
// CacheRoot 无法解析时只有依赖缓存目录的操作会失败。
func New(cfg *config.Config, logger *logrus.Logger, opts ...Option) (*Cache, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}

	hook, err := resolveHook(cfg.Global)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		cfg:    cfg,
		logger: logger,
		policy: NewPolicy(cfg, logger),
		hook:   hook,
		now:    time.Now,
	}
	c.store = sync.OnceValues(func() (cache.Store, error) {
		root, err := cfg.ResolveCacheRoot()
		if err != nil {
			return nil, err
		}
		return cache.NewStore(root)
	})

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func resolveHook(global config.GlobalConfig) (transform.Hook, error) {
	name := strings.TrimSpace(global.Transform)
	if strings.EqualFold(name, transform.MetaTagName) {
		return transform.NewMetaTag(global.MetaTag), nil
	}
	hook, err := transform.Resolve(name)
	if err != nil {
		return nil, fmt.Errorf("Transform: %w", err)
	}
	return hook, nil
}

// Store 返回底层 Store；CacheRoot 未配置时返回 config.ErrCacheRootUnset。
func (c *Cache) Store() (cache.Store, error) {
	return c.store()
}

// Policy 暴露判定组件，供中间件提前短路。
func (c *Cache) Policy() *Policy {
	return c.policy
}

// ShouldCache 见 Policy.ShouldCache。
func (c *Cache) ShouldCache(req Request, resp Response) bool {
	return c.policy.ShouldCache(req, resp)
}

// CanCache 见 Policy.CanCache。
func (c *Cache) CanCache(req Request) bool {
	return c.policy.CanCache(req)
}

// CacheIfNeeded 在 ShouldCache 与 CanCache 同时成立时写入缓存，返回是否写入。
func (c *Cache) CacheIfNeeded(ctx context.Context, req Request, resp Response) (bool, error) {
	if !c.ShouldCache(req, resp) || !c.CanCache(req) {
		return false, nil
	}
	if err := c.Cache(ctx, req, resp); err != nil {
		return false, err
	}
	return true, nil
}

// Cache 无条件写入响应正文：先执行转换钩子，钩子失败时不写任何文件。
func (c *Cache) Cache(ctx context.Context, req Request, resp Response) error {
	store, err := c.store()
	if err != nil {
		return err
	}

	dir, file := Key(req)
	body, err := transform.Apply(c.hook, resp.Body, req.Path)
	if err != nil {
		c.logger.WithFields(logging.EntryFields("cache_write", req.RouteName, req.Path, file)).
			WithError(err).Warn("page transform failed, entry skipped")
		return fmt.Errorf("%w: %v", ErrTransform, err)
	}

	entry, err := store.Write(ctx, cache.JoinPaths(dir, file), body)
	if err != nil {
		return fmt.Errorf("write page cache: %w", err)
	}

	c.logger.WithFields(logging.EntryFields("cache_write", req.RouteName, req.Path, entry.RelPath)).
		WithField("size_bytes", entry.SizeBytes).Debug("page cached")
	return nil
}

// DirectoryAndFile 返回请求对应的绝对目录与文件名。
func (c *Cache) DirectoryAndFile(req Request) (dir, file string, err error) {
	store, err := c.store()
	if err != nil {
		return "", "", err
	}
	rel, file := Key(req)
	return store.Path(rel), file, nil
}

// Forget 删除 <CacheRoot>/<key>.html，返回是否真的删除了文件。
func (c *Cache) Forget(ctx context.Context, key string) (bool, error) {
	if strings.Trim(key, "/") == "" {
		return false, ErrEmptyKey
	}
	store, err := c.store()
	if err != nil {
		return false, err
	}

	removed, err := store.Delete(ctx, store.Path(key+Extension))
	if err != nil {
		return false, err
	}
	c.logger.WithFields(logging.EntryFields("cache_forget", "", key, key+Extension)).
		WithField("removed", removed).Info("page cache forgotten")
	return removed, nil
}

// ClearAll 清空整个缓存目录（根目录保留）。
func (c *Cache) ClearAll(ctx context.Context) error {
	store, err := c.store()
	if err != nil {
		return err
	}
	if err := store.Clear(ctx); err != nil {
		return fmt.Errorf("clear page cache: %w", err)
	}
	c.logger.WithField("action", "cache_clear").Info("page cache cleared")
	return nil
}

// Sweeper 基于当前配置的超时规则构建清理器。
func (c *Cache) Sweeper() (*sweeper.Sweeper, error) {
	store, err := c.store()
	if err != nil {
		return nil, err
	}
	return sweeper.New(store, c.cfg.Timeouts, c.logger, sweeper.WithClock(c.now)), nil
}

// SweepExpired 按超时规则删除过期文件。
func (c *Cache) SweepExpired(ctx context.Context) (sweeper.Report, error) {
	s, err := c.Sweeper()
	if err != nil {
		return sweeper.Report{}, err
	}
	return s.SweepExpired(ctx)
}

// SweepCategory 删除相对路径包含 key 的所有文件。
func (c *Cache) SweepCategory(ctx context.Context, key string) (sweeper.Report, error) {
	s, err := c.Sweeper()
	if err != nil {
		return sweeper.Report{}, err
	}
	return s.SweepCategory(ctx, key)
}
