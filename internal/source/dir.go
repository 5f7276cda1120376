package source

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Dir 从本地文件系统读取帧（模板是普通路径或 file:// URL）。
type Dir struct{}

func (Dir) Fetch(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(LocalPath(path))
}

// LocalPath 把 file:// URL 还原为本地路径；普通路径原样 Clean。
func LocalPath(p string) string {
	p = strings.TrimSpace(p)
	if strings.HasPrefix(strings.ToLower(p), "file://") {
		if u, err := url.Parse(p); err == nil {
			return filepath.FromSlash(u.Path)
		}
	}
	return filepath.Clean(p)
}
