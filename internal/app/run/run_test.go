package run

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/John-Robertt/framefeed/internal/config"
	"github.com/John-Robertt/framefeed/internal/domain"
	"github.com/John-Robertt/framefeed/internal/loader"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("编码 png 失败：%v", err)
	}
	return buf.Bytes()
}

// frameServer 提供 /f/hero-NNN.png；missing 中的帧号返回 404。
func frameServer(t *testing.T, body []byte, missing ...int) (*httptest.Server, *int64) {
	t.Helper()
	skip := make(map[string]bool, len(missing))
	for _, m := range missing {
		skip[fmt.Sprintf("/f/hero-%03d.png", m)] = true
	}
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		if skip[r.URL.Path] || !strings.HasPrefix(r.URL.Path, "/f/hero-") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func baseConfig(tpl string, n int) config.EffectiveConfig {
	return config.EffectiveConfig{
		Template:     tpl,
		FrameCount:   n,
		Sequence:     "hero",
		BatchSize:    4,
		FrameTimeout: 2 * time.Second,
		IdleDelay:    time.Millisecond,
		Scrub:        config.Scrub{Duration: 30 * time.Millisecond, FPS: 200},
	}
}

func TestExecute_HTTP_ReportsFailures(t *testing.T) {
	srv, _ := frameServer(t, testPNG(t), 7, 12)

	rr := Execute(context.Background(), baseConfig(srv.URL+"/f/hero-{frame}.png", 12), Deps{})

	if rr.Error != nil {
		t.Fatalf("不期望前置错误：%+v", rr.Error)
	}
	if rr.Summary.Loaded != 10 || rr.Summary.Failed != 2 || rr.Summary.Pending != 0 {
		t.Fatalf("summary 不符合预期：%+v", rr.Summary)
	}
	if len(rr.Failures) != 2 || rr.Failures[0].Index != 7 || rr.Failures[1].Index != 12 {
		t.Fatalf("failures 不符合预期：%+v", rr.Failures)
	}
	if rr.Failures[0].Reason != domain.FrameResultFailed || !strings.Contains(rr.Failures[0].Error, "404") {
		t.Fatalf("failure 原因不符合预期：%+v", rr.Failures[0])
	}
	if rr.Complete() {
		t.Fatalf("存在失败帧时不应 Complete")
	}
	if rr.StartedAt.Location() != time.UTC || rr.FinishedAt.Before(rr.StartedAt) {
		t.Fatalf("时间字段不符合预期：%v -> %v", rr.StartedAt, rr.FinishedAt)
	}
}

func TestExecute_Dir_AllLoaded(t *testing.T) {
	dir := t.TempDir()
	body := testPNG(t)
	for i := 1; i <= 15; i++ {
		p := filepath.Join(dir, fmt.Sprintf("f-%03d.png", i))
		if err := os.WriteFile(p, body, 0o644); err != nil {
			t.Fatalf("写入帧失败：%v", err)
		}
	}

	cfg := baseConfig(filepath.Join(dir, "f-{frame}.png"), 15)
	rr := Execute(context.Background(), cfg, Deps{Scheduler: loader.YieldScheduler{}})

	if !rr.Complete() || rr.Summary.Progress != 1 {
		t.Fatalf("期望全部加载：%+v failures=%+v", rr.Summary, rr.Failures)
	}
}

func TestExecute_CacheWritesFramesThenServesHits(t *testing.T) {
	srv, hits := frameServer(t, testPNG(t))
	root := t.TempDir()

	cfg := baseConfig(srv.URL+"/f/hero-{frame}.png", 5)
	cfg.Cache = true
	cfg.CacheRoot = root

	rr := Execute(context.Background(), cfg, Deps{})
	if !rr.Complete() {
		t.Fatalf("首次运行应全部加载：%+v", rr.Summary)
	}
	if _, err := os.Stat(filepath.Join(root, "cache", "frames", "hero", "hero-003.png")); err != nil {
		t.Fatalf("期望写入帧缓存：%v", err)
	}
	first := atomic.LoadInt64(hits)

	rr = Execute(context.Background(), cfg, Deps{})
	if !rr.Complete() {
		t.Fatalf("第二次运行应全部加载：%+v", rr.Summary)
	}
	if got := atomic.LoadInt64(hits); got != first {
		t.Fatalf("缓存命中时不应回源：first=%d now=%d", first, got)
	}
}

func TestExecute_CacheDoesNotKeepInvalidFrame(t *testing.T) {
	body := testPNG(t)
	var broken int32 = 1
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 第一次运行：第 3 帧返回 200 + HTML 错误页。
		if r.URL.Path == "/f/hero-003.png" && atomic.LoadInt32(&broken) == 1 {
			_, _ = w.Write([]byte("<html>upstream error</html>"))
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	cfg := baseConfig(srv.URL+"/f/hero-{frame}.png", 5)
	cfg.Cache = true
	cfg.CacheRoot = t.TempDir()

	rr := Execute(context.Background(), cfg, Deps{})
	if rr.Summary.Loaded != 4 || len(rr.Failures) != 1 || rr.Failures[0].Index != 3 {
		t.Fatalf("首次运行第 3 帧应失败：%+v failures=%+v", rr.Summary, rr.Failures)
	}
	if _, err := os.Stat(filepath.Join(cfg.CacheRoot, "cache", "frames", "hero", "hero-003.png")); !os.IsNotExist(err) {
		t.Fatalf("无效帧不应写入缓存，Stat err=%v", err)
	}

	atomic.StoreInt32(&broken, 0)
	rr = Execute(context.Background(), cfg, Deps{})
	if !rr.Complete() {
		t.Fatalf("源站恢复后应全部加载：%+v failures=%+v", rr.Summary, rr.Failures)
	}
}

func TestExecute_InvalidSource(t *testing.T) {
	rr := Execute(context.Background(), baseConfig("ftp://cdn.test/x-{frame}.png", 3), Deps{})
	if rr.Error == nil || rr.Error.Code != domain.ErrCodeSourceInvalid {
		t.Fatalf("期望 %s，实际 %+v", domain.ErrCodeSourceInvalid, rr.Error)
	}
	if rr.Summary.Pending != 3 || rr.Complete() {
		t.Fatalf("前置失败时所有帧应计入 pending：%+v", rr.Summary)
	}
}

func TestExecute_ContextCancelledStopsWaiting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	cfg := baseConfig(srv.URL+"/f/hero-{frame}.png", 20)
	cfg.FrameTimeout = 5 * time.Second

	start := time.Now()
	rr := Execute(ctx, cfg, Deps{})
	if time.Since(start) > 3*time.Second {
		t.Fatalf("ctx 结束后应尽快返回，耗时 %s", time.Since(start))
	}
	if rr.Summary.Loaded != 0 || rr.Summary.Pending != 20 {
		t.Fatalf("期望所有帧仍在 pending：%+v", rr.Summary)
	}
}

func TestExecute_ScrubStats(t *testing.T) {
	srv, _ := frameServer(t, testPNG(t))

	cfg := baseConfig(srv.URL+"/f/hero-{frame}.png", 8)
	cfg.Scrub.Enabled = true

	rr := Execute(context.Background(), cfg, Deps{})
	if rr.Scrub == nil {
		t.Fatalf("scrub.enabled=true 时报告应包含 scrub 统计")
	}
	s := rr.Scrub
	if s.Ticks < 1 || s.Ticks != s.Exact+s.Held+s.Missing {
		t.Fatalf("scrub 统计不自洽：%+v", *s)
	}
	if !rr.Complete() {
		t.Fatalf("期望全部加载：%+v", rr.Summary)
	}
}
