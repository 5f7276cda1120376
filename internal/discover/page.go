package discover

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/framefeed/internal/frameseq"
	"github.com/John-Robertt/framefeed/internal/source"
)

const maxPageBytes = 8 << 20

// FetchPage 抓取页面 HTML。
func FetchPage(ctx context.Context, c *http.Client, pageURL string) ([]byte, error) {
	if c == nil {
		return nil, errors.New("http client 不能为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &source.HTTPStatusError{URL: pageURL, StatusCode: resp.StatusCode, Location: strings.TrimSpace(resp.Header.Get("Location"))}
	}
	if len(b) == 0 {
		return nil, errors.New("empty response body")
	}
	return b, nil
}

// Page 抓取并解析页面，返回帧序列。
func Page(ctx context.Context, c *http.Client, pageURL string) (Result, error) {
	html, err := FetchPage(ctx, c, pageURL)
	if err != nil {
		return Result{}, err
	}
	return ParsePage(html, pageURL)
}

// ParsePage 从页面 HTML 中找出帧序列（纯函数：相同输入 => 相同输出）。
//
// 优先级：
//  1. 显式声明：带 data-frame-template + data-frame-count 的元素（滚动动画的 canvas 容器）
//  2. 推断：img[src]、img[srcset]、source[srcset]、link[rel=preload][as=image][href] 中形如 -NNN.ext 的 URL
//
// 所有 URL 都按 pageURL 解析为绝对地址。
func ParsePage(html []byte, pageURL string) (Result, error) {
	if len(html) == 0 {
		return Result{}, errors.New("html 为空")
	}
	base, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return Result{}, fmt.Errorf("pageURL 无效：%w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Result{}, err
	}

	if r, ok, err := declared(doc, base); err != nil || ok {
		return r, err
	}

	names := make([]string, 0, 64)
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		names = appendResolved(names, base, s.AttrOr("src", ""))
	})
	doc.Find("img[srcset], source[srcset]").Each(func(_ int, s *goquery.Selection) {
		for _, u := range splitSrcset(s.AttrOr("srcset", "")) {
			names = appendResolved(names, base, u)
		}
	})
	doc.Find(`link[rel="preload"][as="image"][href]`).Each(func(_ int, s *goquery.Selection) {
		names = appendResolved(names, base, s.AttrOr("href", ""))
	})

	return fromNames(pageURL, names)
}

func declared(doc *goquery.Document, base *url.URL) (Result, bool, error) {
	sel := doc.Find("[data-frame-template][data-frame-count]").First()
	if sel.Length() == 0 {
		return Result{}, false, nil
	}

	raw := strings.TrimSpace(sel.AttrOr("data-frame-template", ""))
	tpl, err := frameseq.ParseTemplate(resolve(base, raw))
	if err != nil {
		return Result{}, false, err
	}
	countRaw := strings.TrimSpace(sel.AttrOr("data-frame-count", ""))
	count, err := strconv.Atoi(countRaw)
	if err != nil || count < 1 {
		return Result{}, false, fmt.Errorf("data-frame-count 无效：%q", countRaw)
	}

	seq := frameseq.Sequence{Template: tpl.String(), Count: count, Present: count}
	return Result{
		Origin:     base.String(),
		Best:       seq,
		Candidates: []frameseq.Sequence{seq},
		Declared:   true,
	}, true, nil
}

func appendResolved(dst []string, base *url.URL, raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return dst
	}
	return append(dst, resolve(base, raw))
}

// resolve 把相对地址按 base 解析；{frame} 占位符在解析前后保持原样。
func resolve(base *url.URL, raw string) string {
	const marker = "FRAMEFEEDPLACEHOLDER"
	tmp := strings.ReplaceAll(raw, frameseq.Placeholder, marker)
	u, err := url.Parse(tmp)
	if err != nil {
		return raw
	}
	return strings.ReplaceAll(base.ResolveReference(u).String(), marker, frameseq.Placeholder)
}

// splitSrcset 提取 srcset 中的 URL（忽略 1x/2x/640w 描述符）。
func splitSrcset(srcset string) []string {
	parts := strings.Split(srcset, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		fields := strings.Fields(strings.TrimSpace(p))
		if len(fields) == 0 {
			continue
		}
		out = append(out, fields[0])
	}
	return out
}
