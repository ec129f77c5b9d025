package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/page-cache/page-cache/internal/config"
	"github.com/page-cache/page-cache/internal/logging"
	"github.com/page-cache/page-cache/internal/pagecache"
	"github.com/page-cache/page-cache/internal/server"
	"github.com/page-cache/page-cache/internal/server/routes"
	"github.com/page-cache/page-cache/internal/version"
)

const (
	cmdRefresh = "refresh"
	cmdClear   = "clear"
	cmdForget  = "forget"
	cmdDaemon  = "daemon"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	command     string
	args        []string
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["allow_rules"] = len(cfg.AllowList)
		fields["deny_rules"] = len(cfg.DenyList)
		fields["timeouts"] = len(cfg.Timeouts)
		fields["enabled"] = cfg.Global.Enabled
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	pc, err := pagecache.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化页面缓存失败: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runCommand(ctx, opts, cfg, pc, logger); err != nil {
		fmt.Fprintf(stdErr, "%s 执行失败: %v\n", opts.command, err)
		return 1
	}
	return 0
}

// runCommand 分发子命令：refresh/clear/forget 对应一次性维护任务，daemon 常驻。
func runCommand(ctx context.Context, opts cliOptions, cfg *config.Config, pc *pagecache.Cache, logger *logrus.Logger) error {
	switch opts.command {
	case cmdRefresh:
		return runRefresh(ctx, opts.args, pc)
	case cmdClear:
		if err := pc.ClearAll(ctx); err != nil {
			return err
		}
		fmt.Fprintln(stdOut, "page cache cleared")
		return nil
	case cmdForget:
		if len(opts.args) == 0 {
			return pagecache.ErrEmptyKey
		}
		removed, err := pc.Forget(ctx, opts.args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(stdOut, "forget %s: removed=%t\n", opts.args[0], removed)
		return nil
	case cmdDaemon:
		return runDaemon(ctx, opts, cfg, pc, logger)
	default:
		return fmt.Errorf("未知命令: %s", opts.command)
	}
}

// runRefresh 无参数时按超时规则清理；给出关键字时清理路径包含该关键字的所有页面。
func runRefresh(ctx context.Context, args []string, pc *pagecache.Cache) error {
	if len(args) > 0 && args[0] != "" {
		report, err := pc.SweepCategory(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(stdOut, "refresh %q: scanned=%d deleted=%d failed=%d\n", args[0], report.Scanned, report.Deleted, report.Failed)
		return nil
	}
	report, err := pc.SweepExpired(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdOut, "refresh expired: scanned=%d deleted=%d failed=%d\n", report.Scanned, report.Deleted, report.Failed)
	return nil
}

// runDaemon 启动周期清理与管理接口，直到收到退出信号。
func runDaemon(ctx context.Context, opts cliOptions, cfg *config.Config, pc *pagecache.Cache, logger *logrus.Logger) error {
	store, err := pc.Store()
	if err != nil {
		return err
	}
	sw, err := pc.Sweeper()
	if err != nil {
		return err
	}

	app, err := server.NewApp(server.AppOptions{Logger: logger, Cache: pc})
	if err != nil {
		return err
	}
	routes.RegisterAdminRoutes(app, pc, logger)

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["cache_root"] = store.Root()
	fields["sweep_interval"] = cfg.Global.SweepInterval.DurationValue().String()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	go func() {
		if err := sw.Run(ctx, cfg.Global.SweepInterval.DurationValue()); err != nil {
			logger.WithError(err).WithField("action", "sweep_run").Error("周期清理退出")
		}
	}()

	return startHTTPServer(ctx, app, cfg.Global.ListenPort, logger)
}

func startHTTPServer(ctx context.Context, app *fiber.App, port int, logger *logrus.Logger) error {
	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(fmt.Sprintf(":%d", port), fiber.ListenConfig{DisableStartupMessage: true})
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.WithField("action", "shutdown").Info("收到退出信号，停止服务")
		return app.ShutdownWithTimeout(5 * time.Second)
	}
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("page-cache", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 PAGE_CACHE_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("PAGE_CACHE_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	opts := cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
		command:     cmdDaemon,
	}

	rest := fs.Args()
	if len(rest) > 0 {
		opts.command = strings.ToLower(rest[0])
		opts.args = rest[1:]
	}
	if err := validateCommand(opts); err != nil {
		return cliOptions{}, err
	}
	return opts, nil
}

func validateCommand(opts cliOptions) error {
	switch opts.command {
	case cmdRefresh:
		if len(opts.args) > 1 {
			return errors.New("用法: refresh [prefixKey]")
		}
	case cmdClear, cmdDaemon:
		if len(opts.args) > 0 {
			return fmt.Errorf("%s 不接受参数", opts.command)
		}
	case cmdForget:
		if len(opts.args) != 1 || strings.TrimSpace(opts.args[0]) == "" {
			return errors.New("用法: forget <key>")
		}
	default:
		return fmt.Errorf("未知命令: %s（可用: refresh, clear, forget, daemon）", opts.command)
	}
	return nil
}
