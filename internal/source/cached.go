package source

import (
	"context"
	"net/url"
	"path"

	"go.uber.org/zap"

	"github.com/John-Robertt/framefeed/internal/infra/cache"
	"github.com/John-Robertt/framefeed/internal/infra/imgx"
)

// Cached 在 Next 之前查磁盘缓存；未命中时回源，并把结果写回缓存。
//
// 只有能被 imgx.Probe 识别的字节才会写入缓存：200 + HTML 错误页、截断的 body 不能被“固化”。
// 已经在缓存里的坏文件视为未命中，回源成功后被覆盖。
// 缓存写入失败只记日志：缓存是加速手段，不能让帧加载因此失败。
type Cached struct {
	Next     Source
	Store    cache.Store
	Sequence string
	Logger   *zap.Logger
}

func (c Cached) Fetch(ctx context.Context, p string) ([]byte, error) {
	name := cacheName(p)

	if b, ok, err := c.Store.ReadFrame(c.Sequence, name); err == nil && ok {
		if _, perr := imgx.Probe(b); perr == nil {
			return b, nil
		}
		c.warn("帧缓存内容无效，回源", zap.String("path", p))
	}

	b, err := c.Next.Fetch(ctx, p)
	if err != nil {
		return nil, err
	}
	if c.Store.ReadOnly {
		return b, nil
	}
	if _, perr := imgx.Probe(b); perr != nil {
		// 交给 loader 判定失败；这里只是不写缓存。
		return b, nil
	}
	if werr := c.Store.WriteFrame(c.Sequence, name, b); werr != nil {
		c.warn("写入帧缓存失败", zap.String("path", p), zap.Error(werr))
	}
	return b, nil
}

func (c Cached) warn(msg string, fields ...zap.Field) {
	if c.Logger != nil {
		c.Logger.Warn(msg, fields...)
	}
}

// cacheName 取帧路径的最后一段作为缓存文件名（忽略 query）。
func cacheName(p string) string {
	if u, err := url.Parse(p); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(p)
}
