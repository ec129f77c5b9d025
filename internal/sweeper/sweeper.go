// Package sweeper evicts stale page-cache files. SweepExpired applies the
// ordered timeout rules to every file's modtime, SweepCategory drops every
// file whose relative path contains a key. Both are best effort: a file that
// cannot be deleted is logged and counted, and the walk goes on.
package sweeper

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/page-cache/page-cache/internal/cache"
	"github.com/page-cache/page-cache/internal/config"
	"github.com/page-cache/page-cache/internal/logging"
)

// ErrEmptyCategory 表示分类关键字为空；空串会命中所有文件，必须显式使用 ClearAll。
var ErrEmptyCategory = errors.New("category key required")

// Report 汇总一次清理的扫描与删除数量。
type Report struct {
	Scanned int `json:"scanned"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// Sweeper 遍历 Store 文件树并按规则删除条目，自身不持有可变状态。
type Sweeper struct {
	store  cache.Store
	rules  []config.TimeoutRule
	logger *logrus.Logger
	now    func() time.Time
}

// Option 调整 Sweeper 的可选行为。
type Option func(*Sweeper)

// WithClock 注入时钟，测试中用于模拟时间流逝。
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// New 构造 Sweeper；rules 保持配置中的声明顺序。
func New(store cache.Store, rules []config.TimeoutRule, logger *logrus.Logger, opts ...Option) *Sweeper {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	s := &Sweeper{
		store:  store,
		rules:  append([]config.TimeoutRule(nil), rules...),
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MatchRule 返回作用于 relPath 的超时规则。
// 按声明顺序取第一条前缀（忽略大小写）命中的非空分类；都不命中时退回空分类兜底规则。
// “空分类 + 零时长” 的占位规则表示不删除任何内容，会被跳过。
func (s *Sweeper) MatchRule(relPath string) (config.TimeoutRule, bool) {
	lowered := strings.ToLower(relPath)

	var fallback *config.TimeoutRule
	for i := range s.rules {
		rule := s.rules[i]
		if rule.IsPlaceholder() {
			continue
		}
		if rule.Category == "" {
			if fallback == nil {
				fallback = &s.rules[i]
			}
			continue
		}
		if strings.HasPrefix(lowered, strings.ToLower(rule.Category)) {
			return rule, true
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return config.TimeoutRule{}, false
}

// SweepExpired 删除所有已超过规则时长（now > modTime + TTL）的文件。
func (s *Sweeper) SweepExpired(ctx context.Context) (Report, error) {
	now := s.now()
	report, err := s.sweep(ctx, func(entry cache.FileEntry) bool {
		rule, ok := s.MatchRule(entry.RelPath)
		if !ok {
			return false
		}
		return now.After(entry.ModTime.Add(rule.TTL.DurationValue()))
	})
	s.logger.WithFields(logging.SweepFields("expired", report.Scanned, report.Deleted, report.Failed)).
		Info("page-cache check timeout finished")
	return report, err
}

// SweepCategory 删除相对路径中包含 key（忽略大小写，任意位置）的所有文件。
func (s *Sweeper) SweepCategory(ctx context.Context, key string) (Report, error) {
	if key == "" {
		return Report{}, ErrEmptyCategory
	}
	needle := strings.ToLower(key)
	report, err := s.sweep(ctx, func(entry cache.FileEntry) bool {
		return strings.Contains(strings.ToLower(entry.RelPath), needle)
	})
	fields := logging.SweepFields("category", report.Scanned, report.Deleted, report.Failed)
	fields["category"] = key
	s.logger.WithFields(fields).Info("page-cache clear category finished")
	return report, err
}

func (s *Sweeper) sweep(ctx context.Context, shouldDelete func(cache.FileEntry) bool) (Report, error) {
	var report Report
	for entry, err := range s.store.List(s.store.Root()) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report, ctxErr
		}
		if err != nil {
			report.Failed++
			s.logger.WithError(err).
				WithFields(logrus.Fields{"action": "sweep_list", "file": entry.FilePath}).
				Warn("cache listing failed, skipping")
			continue
		}

		report.Scanned++
		if !shouldDelete(entry) {
			continue
		}

		removed, err := s.store.Delete(ctx, entry.FilePath)
		if err != nil {
			report.Failed++
			s.logger.WithError(err).
				WithFields(logrus.Fields{"action": "sweep_delete", "file": entry.FilePath}).
				Warn("cache delete failed, skipping")
			continue
		}
		if removed {
			report.Deleted++
			s.logger.WithFields(logrus.Fields{"action": "sweep_delete", "file": entry.RelPath}).Debug("cache entry deleted")
		}
	}
	return report, nil
}

// Run 立即执行一次 SweepExpired，之后每隔 interval 执行一次，直到 ctx 结束。
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("sweep interval must be positive")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepExpired(ctx); err != nil && ctx.Err() == nil {
			s.logger.WithError(err).WithField("action", "sweep_run").Warn("scheduled sweep failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
