package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Source 是宿主环境提供的“按路径加载图片”能力。
//
// 约束：
// - Fetch 不做缓存、不做重试（失败帧由 loader 直接跳过）
// - 必须尊重 ctx：loader 超时或关闭时会取消 ctx
// - 返回原始字节；是否为有效图片由 loader 校验
type Source interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// Func 把普通函数适配为 Source（测试与嵌入场景常用）。
type Func func(ctx context.Context, path string) ([]byte, error)

func (f Func) Fetch(ctx context.Context, path string) ([]byte, error) { return f(ctx, path) }

// Kind 返回模板对应的数据源类型："http" 或 "file"。
func Kind(template string) (string, error) {
	template = strings.TrimSpace(template)
	if template == "" {
		return "", errors.New("template 不能为空")
	}
	u, err := url.Parse(template)
	if err != nil {
		// Windows 盘符路径等会解析失败：按本地文件处理。
		return "file", nil
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Host == "" {
			return "", fmt.Errorf("template 缺少 host：%q", template)
		}
		return "http", nil
	case "", "file":
		return "file", nil
	default:
		if len(u.Scheme) == 1 {
			// "C:\frames\..." 被解析为 scheme="c"。
			return "file", nil
		}
		return "", fmt.Errorf("不支持的 template scheme：%q", u.Scheme)
	}
}

// New 按模板 scheme 选择数据源：http/https 走 HTTP，其余按本地文件处理。
func New(template string, client *http.Client) (Source, error) {
	kind, err := Kind(template)
	if err != nil {
		return nil, err
	}
	if kind == "http" {
		if client == nil {
			return nil, errors.New("http client 不能为空")
		}
		return HTTP{Client: client}, nil
	}
	return Dir{}, nil
}
