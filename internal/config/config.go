package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/John-Robertt/framefeed/internal/frameseq"
	"github.com/John-Robertt/framefeed/internal/source"
)

// FileName 是配置文件的固定文件名（位于 cwd）。
const FileName = "framefeed.json"

const (
	// ErrCodeNotFound 表示未给出模板且 cwd 下没有 framefeed.json。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingTemplate 表示未给出模板且配置文件缺少 template 字段。
	ErrCodeMissingTemplate = "config_missing_template"
)

const (
	// DefaultBatchSize 是每批并发加载的帧数。
	DefaultBatchSize = 4
	// MaxBatchSize 是 batch_size 的上限；超出截断。
	MaxBatchSize = 32
	// DefaultFrameTimeout 是单帧加载超时。
	DefaultFrameTimeout = 2 * time.Second
	// DefaultIdleDelay 是批次之间的让出间隔。
	DefaultIdleDelay = 16 * time.Millisecond
	// DefaultScrubDuration 是模拟拖动从第 1 帧到第 N 帧的总时长。
	DefaultScrubDuration = 5 * time.Second
	// DefaultScrubFPS 是模拟渲染循环的帧率。
	DefaultScrubFPS = 60
	// MaxScrubFPS 是 scrub.fps 的上限；超出截断。
	MaxScrubFPS = 240
)

// CLIArgs 只包含 CLI 暴露的三项入口（template/frames/scrub），并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --scrub=false 必须能覆盖 config.scrub.enabled=true。
type CLIArgs struct {
	Template string

	Frames    int
	FramesSet bool

	Scrub    bool
	ScrubSet bool
}

// FileConfig 对应 framefeed.json 的解析结构。
type FileConfig struct {
	Template       string       `json:"template"`
	FrameCount     int          `json:"frame_count"`
	Sequence       string       `json:"sequence"`
	BatchSize      int          `json:"batch_size"`
	FrameTimeoutMS int          `json:"frame_timeout_ms"`
	IdleDelayMS    int          `json:"idle_delay_ms"`
	Proxy          *ProxyConfig `json:"proxy"`
	Cache          bool         `json:"cache"`
	Scrub          *ScrubConfig `json:"scrub"`
	MetricsAddr    string       `json:"metrics_addr"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

type ScrubConfig struct {
	Enabled    *bool `json:"enabled"`
	DurationMS int   `json:"duration_ms"`
	FPS        int   `json:"fps"`
}

// Scrub 是模拟渲染循环的最终参数。
type Scrub struct {
	Enabled  bool
	Duration time.Duration
	FPS      int
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Template   string
	FrameCount int
	// Sequence 是序列名：用于缓存目录、指标 label 与报告。
	Sequence string

	BatchSize    int
	FrameTimeout time.Duration
	IdleDelay    time.Duration

	ProxyURL string

	// Cache=true 时帧字节缓存到 <CacheRoot>/cache/frames/<sequence>/，报告写到 <CacheRoot>/cache/report.json。
	Cache     bool
	CacheRoot string

	Scrub       Scrub
	MetricsAddr string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingTemplate:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 template", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取 <cwd>/framefeed.json，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 template：配置文件可选
// 2) CLI 未提供 template：配置文件必选，且其中必须包含 template
//
// 覆盖优先级（固定）：
// - template：CLI > config
// - frames：CLI --frames > config frame_count（必须 >= 1）
// - scrub：CLI --scrub/--scrub=false > config scrub.enabled > 默认 false
// - 其他字段：仅由 config 控制（CLI 不暴露）
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	tpl := strings.TrimSpace(cli.Template)
	if tpl == "" {
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
		tpl = strings.TrimSpace(fc.Template)
		if tpl == "" {
			return EffectiveConfig{}, &Error{Code: ErrCodeMissingTemplate, Path: cfgPath}
		}
	}

	return merge(cwdAbs, tpl, cli, fc, cfgPath)
}

func merge(cwdAbs, tpl string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(err error) (EffectiveConfig, error) {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	kind, err := source.Kind(tpl)
	if err != nil {
		return invalid(err)
	}
	if kind == "file" && !strings.HasPrefix(strings.ToLower(tpl), "file://") {
		tpl = absCleanFrom(cwdAbs, tpl)
	}
	if _, err := frameseq.ParseTemplate(tpl); err != nil {
		return invalid(err)
	}

	// frames：CLI > config
	frames := fc.FrameCount
	if cli.FramesSet {
		frames = cli.Frames
	}
	if frames < 1 {
		return invalid(fmt.Errorf("frame_count 必须 >= 1，实际 %d", frames))
	}

	sequence := strings.ToLower(strings.TrimSpace(fc.Sequence))
	if sequence == "" {
		sequence = DeriveSequence(tpl)
	}
	if !sequenceRE.MatchString(sequence) {
		return invalid(fmt.Errorf("sequence 只能包含 [a-z0-9_-]：%q", sequence))
	}

	batch := fc.BatchSize
	if batch == 0 {
		batch = DefaultBatchSize
	}
	// 范围 [1, 32]；超出截断。
	if batch < 1 {
		batch = 1
	}
	if batch > MaxBatchSize {
		batch = MaxBatchSize
	}

	timeout := DefaultFrameTimeout
	if fc.FrameTimeoutMS < 0 {
		return invalid(fmt.Errorf("frame_timeout_ms 不能为负数：%d", fc.FrameTimeoutMS))
	}
	if fc.FrameTimeoutMS > 0 {
		timeout = time.Duration(fc.FrameTimeoutMS) * time.Millisecond
	}

	idle := DefaultIdleDelay
	if fc.IdleDelayMS < 0 {
		return invalid(fmt.Errorf("idle_delay_ms 不能为负数：%d", fc.IdleDelayMS))
	}
	if fc.IdleDelayMS > 0 {
		idle = time.Duration(fc.IdleDelayMS) * time.Millisecond
	}

	proxyURL := fc.ProxyURL()
	if proxyURL != "" {
		if _, err := url.Parse(proxyURL); err != nil {
			return invalid(fmt.Errorf("proxy.url 无效：%w", err))
		}
	}

	scrub := Scrub{Duration: DefaultScrubDuration, FPS: DefaultScrubFPS}
	if fc.Scrub != nil {
		if fc.Scrub.Enabled != nil {
			scrub.Enabled = *fc.Scrub.Enabled
		}
		if fc.Scrub.DurationMS < 0 || fc.Scrub.FPS < 0 {
			return invalid(fmt.Errorf("scrub.duration_ms/scrub.fps 不能为负数"))
		}
		if fc.Scrub.DurationMS > 0 {
			scrub.Duration = time.Duration(fc.Scrub.DurationMS) * time.Millisecond
		}
		if fc.Scrub.FPS > 0 {
			scrub.FPS = fc.Scrub.FPS
		}
		// 范围 [1, 240]；超出截断。
		if scrub.FPS > MaxScrubFPS {
			scrub.FPS = MaxScrubFPS
		}
	}
	if cli.ScrubSet {
		scrub.Enabled = cli.Scrub
	}

	return EffectiveConfig{
		Template:     tpl,
		FrameCount:   frames,
		Sequence:     sequence,
		BatchSize:    batch,
		FrameTimeout: timeout,
		IdleDelay:    idle,
		ProxyURL:     proxyURL,
		Cache:        fc.Cache,
		CacheRoot:    cwdAbs,
		Scrub:        scrub,
		MetricsAddr:  strings.TrimSpace(fc.MetricsAddr),
	}, nil
}

var (
	sequenceRE = regexp.MustCompile(`^[a-z0-9_-]+$`)
	nonSeqRE   = regexp.MustCompile(`[^a-z0-9_-]+`)
)

// DeriveSequence 从模板推导默认序列名：取 {frame} 所在路径段的前缀，
// 若前缀为空则退回上一级目录名。例如 ".../hero/hero-{frame}.jpg" -> "hero"。
func DeriveSequence(tpl string) string {
	s := tpl
	if i := strings.IndexAny(s, "?#"); i >= 0 && i > strings.Index(s, frameseq.Placeholder) {
		s = s[:i]
	}
	segs := strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == '\\' })
	for i := len(segs) - 1; i >= 0; i-- {
		seg := segs[i]
		if j := strings.Index(seg, frameseq.Placeholder); j >= 0 {
			seg = seg[:j]
		}
		seg = strings.Trim(nonSeqRE.ReplaceAllString(strings.ToLower(seg), "-"), "-_")
		if seg != "" {
			return seg
		}
	}
	return "frames"
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// ReadFile 读取 <cwd>/framefeed.json（可选）：不存在时 exists=false 且 err=nil。
// discover 只需要其中的 proxy，不走 LoadEffective 的必填校验。
func ReadFile(cwd string) (fc FileConfig, exists bool, err error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return FileConfig{}, false, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}
	cfgPath := filepath.Join(cwdAbs, FileName)
	fc, exists, err = readFileConfig(cfgPath)
	if err != nil {
		return FileConfig{}, exists, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	return fc, exists, nil
}

// ProxyURL 返回 proxy.url（去空白）；未配置时为空串。
func (fc FileConfig) ProxyURL() string {
	if fc.Proxy == nil {
		return ""
	}
	return strings.TrimSpace(fc.Proxy.URL)
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
