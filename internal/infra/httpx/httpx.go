// Package httpx 构造 framefeed 的两类出站 HTTP client：
// 抓取页面 HTML 的 page client 与下载帧图片的 frame client。
package httpx

import (
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// pageRetries 是 page client 在传输错误后的额外尝试次数；frame client 不重试。
const pageRetries = 2

// browserUAs 每个请求随机取一个，替换默认的 Go-http-client。
var browserUAs = [...]string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
}

// Transport 给每个请求补上浏览器 UA，并在传输错误时最多再试 retries 次。
// 响应状态码不在这里判断，由 source/discover 自己处理。
type Transport struct {
	base    *http.Transport
	retries int
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		// 每次都在副本上改 Header，调用方的 req 保持原样。
		r := req.Clone(req.Context())
		if r.Header.Get("User-Agent") == "" {
			r.Header.Set("User-Agent", browserUAs[rand.IntN(len(browserUAs))])
		}
		if t.base.DisableKeepAlives {
			r.Close = true
		}

		resp, err := t.base.RoundTrip(r)
		if err == nil || attempt >= t.retries || req.Context().Err() != nil {
			return resp, err
		}
	}
}

// NewPageClient 用于 discover 抓取 HTML：传输错误时重试 pageRetries 次。
func NewPageClient(proxyURL string) (*http.Client, error) {
	return newClient(proxyURL, pageRetries)
}

// NewFrameClient 用于下载帧：不重试，失败帧由 loader 记为 failed。
// 单帧超时由 loader 的竞速控制，这里的 client 超时只兜底。
func NewFrameClient(proxyURL string) (*http.Client, error) {
	return newClient(proxyURL, 0)
}

func newClient(proxyURL string, retries int) (*http.Client, error) {
	base := &http.Transport{
		MaxIdleConnsPerHost:   8,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}
	if p := strings.TrimSpace(proxyURL); p != "" {
		u, err := url.Parse(p)
		if err != nil {
			return nil, err
		}
		// 走代理时每个请求新建连接，代理端才能轮换出口。
		base.Proxy = http.ProxyURL(u)
		base.DisableKeepAlives = true
	}
	return &http.Client{
		Transport: &Transport{base: base, retries: retries},
		Timeout:   20 * time.Second,
	}, nil
}
