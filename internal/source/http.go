package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxFrameBytes 限制单帧大小，防止误配模板时把整段视频/HTML 读进内存。
const maxFrameBytes = 32 << 20

// acceptHeader 只声明 imgx.Probe 能解码的格式：内容协商的 CDN 不会返回无法校验的 AVIF。
const acceptHeader = "image/webp,image/png,image/jpeg,image/gif;q=0.9,*/*;q=0.5"

// HTTPStatusError 表示帧地址返回了非 2xx 的 HTTP 状态码。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Location   string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	loc := strings.TrimSpace(e.Location)
	if loc == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d location=%s", e.StatusCode, loc)
}

// HTTP 通过 http.Client 拉取帧。
type HTTP struct {
	Client *http.Client
}

func (h HTTP) Fetch(ctx context.Context, u string) ([]byte, error) {
	if h.Client == nil {
		return nil, errors.New("http client 不能为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", acceptHeader)

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 丢弃少量 body，让连接可以被复用。
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &HTTPStatusError{URL: u, StatusCode: resp.StatusCode, Location: strings.TrimSpace(resp.Header.Get("Location"))}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxFrameBytes {
		return nil, fmt.Errorf("帧过大：超过 %d 字节", maxFrameBytes)
	}
	if len(b) == 0 {
		return nil, errors.New("empty response body")
	}
	return b, nil
}
