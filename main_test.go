package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseCLIFlagsPriority(t *testing.T) {
	t.Setenv("PAGE_CACHE_CONFIG", "/tmp/env.toml")

	opts, err := parseCLIFlags([]string{})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/env.toml" {
		t.Fatalf("应优先使用环境变量，得到 %s", opts.configPath)
	}
	if opts.command != cmdDaemon {
		t.Fatalf("默认命令应为 daemon，得到 %s", opts.command)
	}

	opts, err = parseCLIFlags([]string{"--config", "/tmp/flag.toml"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/flag.toml" {
		t.Fatalf("flag 应高于环境变量，得到 %s", opts.configPath)
	}
}

func TestParseCLIFlagsCommands(t *testing.T) {
	opts, err := parseCLIFlags([]string{"-config", "c.toml", "refresh", "news"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.command != cmdRefresh || len(opts.args) != 1 || opts.args[0] != "news" {
		t.Fatalf("refresh 参数解析错误: %+v", opts)
	}

	invalid := [][]string{
		{"forget"},
		{"forget", "a", "b"},
		{"clear", "extra"},
		{"refresh", "a", "b"},
		{"purge"},
	}
	for _, args := range invalid {
		if _, err := parseCLIFlags(args); err == nil {
			t.Fatalf("参数 %v 应解析失败", args)
		}
	}
}

func TestRunCheckConfigSuccess(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "valid.toml"), checkOnly: true})
	if code != 0 {
		t.Fatalf("期望退出码 0，得到 %d", code)
	}
}

func TestRunCheckConfigFailure(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "missing.toml"), checkOnly: true})
	if code == 0 {
		t.Fatalf("无效配置应返回非零退出码")
	}
}

func TestRunVersionOutput(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{showVersion: true})
	if code != 0 {
		t.Fatalf("version 模式应成功退出，得到 %d", code)
	}
	if !strings.Contains(stdOut.(*bytes.Buffer).String(), "page-cache") {
		t.Fatalf("version 输出应包含 page-cache 标识")
	}
}

func TestRunMaintenanceCommands(t *testing.T) {
	root := filepath.Join(t.TempDir(), "page-cache")
	mustWrite(t, filepath.Join(root, "news", "launch.html"))
	mustWrite(t, filepath.Join(root, "news", "old.html"))
	mustWrite(t, filepath.Join(root, "shop", "item.html"))

	configPath := writeConfigFile(t, `
CacheRoot = "`+filepath.ToSlash(root)+`"
AllowList = ["web.*"]
`)

	useBufferWriters(t)
	if code := run(cliOptions{configPath: configPath, command: cmdForget, args: []string{"news/launch"}}); code != 0 {
		t.Fatalf("forget 失败: %d (%s)", code, stdErrBuffer().String())
	}
	if !strings.Contains(stdOutBuffer().String(), "removed=true") {
		t.Fatalf("forget 输出缺少 removed=true: %s", stdOutBuffer().String())
	}
	if _, err := os.Stat(filepath.Join(root, "news", "launch.html")); !os.IsNotExist(err) {
		t.Fatalf("forget 后文件应不存在")
	}

	if code := run(cliOptions{configPath: configPath, command: cmdRefresh, args: []string{"NEWS"}}); code != 0 {
		t.Fatalf("refresh 失败: %d (%s)", code, stdErrBuffer().String())
	}
	if _, err := os.Stat(filepath.Join(root, "news", "old.html")); !os.IsNotExist(err) {
		t.Fatalf("refresh NEWS 应删除 news/old.html")
	}
	if _, err := os.Stat(filepath.Join(root, "shop", "item.html")); err != nil {
		t.Fatalf("refresh NEWS 不应删除 shop/item.html: %v", err)
	}

	if code := run(cliOptions{configPath: configPath, command: cmdRefresh}); code != 0 {
		t.Fatalf("refresh expired 失败: %d", code)
	}
	if _, err := os.Stat(filepath.Join(root, "shop", "item.html")); err != nil {
		t.Fatalf("新文件不应过期: %v", err)
	}

	if code := run(cliOptions{configPath: configPath, command: cmdClear}); code != 0 {
		t.Fatalf("clear 失败: %d", code)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("clear 后根目录应保留: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("clear 后根目录应为空，得到 %d 项", len(entries))
	}
}

func TestRunFailsWithoutCacheRoot(t *testing.T) {
	configPath := writeConfigFile(t, `AllowList = ["web.*"]`)

	useBufferWriters(t)
	if code := run(cliOptions{configPath: configPath, command: cmdClear}); code == 0 {
		t.Fatalf("缺少 CacheRoot 时 clear 应失败")
	}
	if !strings.Contains(stdErrBuffer().String(), "cache root not set") {
		t.Fatalf("错误输出应说明缓存目录未配置: %s", stdErrBuffer().String())
	}
}

func mustWrite(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败: %v", err)
	}
	if err := os.WriteFile(path, []byte("<html></html>"), 0o644); err != nil {
		t.Fatalf("写入文件失败: %v", err)
	}
}
