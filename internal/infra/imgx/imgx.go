package imgx

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // 注册 GIF 解码器
	_ "image/jpeg" // 注册 JPEG 解码器
	_ "image/png"  // 注册 PNG 解码器

	_ "golang.org/x/image/webp" // 注册 WebP 解码器（有损 VP8 / 无损 VP8L）
)

// Formats 是 Probe 能识别的格式（image.DecodeConfig 返回的 format 名）。
// 帧文件名推断与 HTTP Accept 头都以它为准。
var Formats = []string{"jpeg", "png", "gif", "webp"}

// Info 是帧图片的头部信息。
type Info struct {
	Format string
	Width  int
	Height int
}

// ErrEmpty 表示图片字节为空（常见于 200 但 body 为空的 CDN 响应）。
var ErrEmpty = errors.New("图片为空")

// Probe 只解析图片头部（DecodeConfig），校验帧是可解码的图片。
//
// 约束：
// - 输入允许是 JPEG/PNG/GIF/WebP；Formats 之外的格式（例如 AVIF）一律视为无效帧
// - 不做完整解码：渲染侧拿到的是原始字节，解码成本留给使用方
// - 尺寸必须为正
func Probe(b []byte) (Info, error) {
	if len(b) == 0 {
		return Info{}, ErrEmpty
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return Info{}, fmt.Errorf("无法识别的图片：%w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Info{}, fmt.Errorf("图片尺寸无效：%dx%d", cfg.Width, cfg.Height)
	}
	return Info{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}
