package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/John-Robertt/framefeed/internal/app/run"
	"github.com/John-Robertt/framefeed/internal/config"
	"github.com/John-Robertt/framefeed/internal/discover"
	"github.com/John-Robertt/framefeed/internal/domain"
	"github.com/John-Robertt/framefeed/internal/infra/fsx"
	"github.com/John-Robertt/framefeed/internal/infra/httpx"
	"github.com/John-Robertt/framefeed/internal/source"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "run":
		if code := runCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	case "discover":
		if code := discoverCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage()
			return 0
		}
	}

	ra, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		Template:  ra.Template,
		Frames:    ra.Frames,
		FramesSet: ra.FramesSet,
		Scrub:     ra.Scrub,
		ScrubSet:  ra.ScrubSet,
	})
	if err != nil {
		emitReport(reportForConfigError(ra, err))
		return 1
	}

	log := newLogger()
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	deps := run.Deps{Logger: log}
	if eff.MetricsAddr != "" {
		m, shutdown, err := serveMetrics(eff.MetricsAddr, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "启动 metrics 服务失败：%v\n", err)
			return 1
		}
		defer shutdown()
		deps.Metrics = m
	}

	progressW, interactive := pickProgressWriter()
	var obs run.Observer
	if interactive {
		ui := newProgressUI(progressW)
		defer ui.Close()
		obs = ui
	}

	rr := run.ExecuteWithObserver(ctx, eff, deps, obs)

	// cache=true：报告与帧缓存放在一起，写入 <cwd>/cache/report.json。
	if eff.Cache {
		if err := writeReportFile(eff.CacheRoot, rr); err != nil {
			fmt.Fprintf(os.Stderr, "写入 report.json 失败：%v\n", err)
			emitReport(rr)
			return 1
		}
	}

	emitReport(rr)
	if interactive {
		emitLocations(progressW, eff)
	}
	if rr.Complete() {
		return 0
	}
	return 1
}

type runArgs struct {
	Template  string
	Frames    int
	FramesSet bool
	Scrub     bool
	ScrubSet  bool
}

func parseRunArgs(args []string) (runArgs, error) {
	ra := runArgs{}

	setFrames := func(v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 1 {
			return fmt.Errorf("--frames 必须是 >= 1 的整数，实际是 %q", v)
		}
		ra.Frames = n
		ra.FramesSet = true
		return nil
	}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--frames":
			if i+1 >= len(args) {
				return runArgs{}, fmt.Errorf("--frames 需要一个值")
			}
			i++
			if err := setFrames(args[i]); err != nil {
				return runArgs{}, err
			}
		case strings.HasPrefix(a, "--frames="):
			if err := setFrames(strings.TrimPrefix(a, "--frames=")); err != nil {
				return runArgs{}, err
			}
		case a == "--scrub":
			ra.Scrub = true
			ra.ScrubSet = true
		case strings.HasPrefix(a, "--scrub="):
			v := strings.TrimPrefix(a, "--scrub=")
			switch v {
			case "true":
				ra.Scrub = true
			case "false":
				ra.Scrub = false
			default:
				return runArgs{}, fmt.Errorf("--scrub 只能是 true 或 false，实际是 %q", v)
			}
			ra.ScrubSet = true
		case strings.HasPrefix(a, "-"):
			return runArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if ra.Template != "" {
				return runArgs{}, fmt.Errorf("重复的 template：%q 与 %q", ra.Template, a)
			}
			ra.Template = a
		}
	}

	return ra, nil
}

func discoverCmd(args []string) int {
	target := ""
	for _, a := range args {
		switch {
		case isHelp(a):
			printDiscoverUsage()
			return 0
		case strings.HasPrefix(a, "-"):
			fmt.Fprintf(os.Stderr, "参数错误：未知参数 %q\n\n", a)
			printDiscoverUsage()
			return 2
		case target != "":
			fmt.Fprintf(os.Stderr, "参数错误：重复的目标：%q 与 %q\n\n", target, a)
			printDiscoverUsage()
			return 2
		default:
			target = a
		}
	}
	if target == "" {
		fmt.Fprint(os.Stderr, "参数错误：缺少 <page-url|dir>\n\n")
		printDiscoverUsage()
		return 2
	}

	res, err := discoverTarget(context.Background(), target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "discover 失败：%v\n", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(res)
	fmt.Fprintf(os.Stderr, "template: %s frames=%d present=%d\n", res.Best.Template, res.Best.Count, res.Best.Present)
	return 0
}

func discoverTarget(ctx context.Context, target string) (discover.Result, error) {
	kind, err := source.Kind(target)
	if err != nil {
		return discover.Result{}, err
	}
	if kind == "file" {
		return discover.Dir(source.LocalPath(target))
	}

	proxyURL := ""
	if cwd, err := os.Getwd(); err == nil {
		fc, _, err := config.ReadFile(cwd)
		if err != nil {
			return discover.Result{}, err
		}
		proxyURL = fc.ProxyURL()
	}
	c, err := httpx.NewPageClient(proxyURL)
	if err != nil {
		return discover.Result{}, fmt.Errorf("proxy.url 无效：%w", err)
	}
	return discover.Page(ctx, c, target)
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  framefeed run [template] [--frames N] [--scrub[=true|false]]
  framefeed discover <page-url|dir>

命令：
  run       按三档优先级加载整个帧序列并输出报告
  discover  从页面或目录中找出帧序列模板与帧数

使用 "framefeed run --help" 查看详细说明。
`)
}

func printRunUsage() {
	fmt.Fprint(os.Stdout, `用法：
  framefeed run [template] [--frames N] [--scrub[=true|false]]

参数：
  template    帧路径模板，必须包含一个 {frame}（例如 https://cdn.test/hero-{frame}.jpg）；未指定则读 framefeed.json
  --frames    帧数 N（未指定则读配置文件 frame_count）
  --scrub     加载的同时模拟一次从第 1 帧到第 N 帧的拖动；支持 --scrub=false 覆盖配置
  -h, --help  显示帮助
`)
}

func printDiscoverUsage() {
	fmt.Fprint(os.Stdout, `用法：
  framefeed discover <page-url|dir>

页面：优先读取 data-frame-template/data-frame-count 声明，否则从 img/srcset/preload 中推断。
目录：扫描文件名形如 name-001.jpg 的帧（跳过 cache/ 与隐藏文件）。
结果以 JSON 输出到 stdout。
`)
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.Sampling = nil
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	if v := strings.TrimSpace(os.Getenv("FRAMEFEED_LOG_LEVEL")); v != "" {
		if lvl, err := zapcore.ParseLevel(v); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func emitReport(rr domain.RunReport) {
	summary := fmt.Sprintf("完成：loaded=%d/%d failed=%d timed_out=%d pending=%d progress=%.1f%%\n",
		rr.Summary.Loaded, rr.FrameCount, rr.Summary.Failed, rr.Summary.TimedOut, rr.Summary.Pending, rr.Summary.Progress*100,
	)

	if isTTY(os.Stdout) {
		fmt.Fprint(os.Stdout, summary)
		if rr.Error != nil {
			fmt.Fprintf(os.Stderr, "%s: %s\n", rr.Error.Code, rr.Error.Msg)
		}
		for _, f := range rr.Failures {
			fmt.Fprintf(os.Stderr, "#%03d %s: %s\n", f.Index, f.Reason, f.Error)
		}
		if rr.Scrub != nil {
			fmt.Fprintf(os.Stdout, "拖动模拟：ticks=%d exact=%d held=%d missing=%d\n", rr.Scrub.Ticks, rr.Scrub.Exact, rr.Scrub.Held, rr.Scrub.Missing)
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprint(os.Stderr, summary)
}

func reportForConfigError(ra runArgs, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		Template:   ra.Template,
		FrameCount: ra.Frames,
		StartedAt:  now,
		FinishedAt: now,
		Failures:   []domain.FrameFailure{},
		Error:      &domain.ReportError{Code: config.Code(err), Msg: err.Error()},
	}
	rr.Finalize()
	return rr
}

func writeReportFile(root string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomic(filepath.Join(root, "cache"), "report.json", b)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, eff config.EffectiveConfig) {
	if w == nil || !eff.Cache {
		return
	}
	fmt.Fprintf(w, "report: %s\n", filepath.Join(eff.CacheRoot, "cache", "report.json"))
}
