package frameseq

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Placeholder 是路径模板中的帧号占位符，替换为 3 位补零的帧号（7 -> "007"）。
const Placeholder = "{frame}"

// Template 描述一个帧序列的资源路径模板，例如 "https://cdn.test/hero/hero-{frame}.jpg"。
type Template struct {
	raw string
}

// ParseTemplate 校验模板：必须恰好包含一个 {frame}。
func ParseTemplate(raw string) (Template, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Template{}, fmt.Errorf("template 不能为空")
	}
	switch n := strings.Count(raw, Placeholder); n {
	case 1:
		return Template{raw: raw}, nil
	case 0:
		return Template{}, fmt.Errorf("template 缺少占位符 %s：%q", Placeholder, raw)
	default:
		return Template{}, fmt.Errorf("template 只能包含一个 %s，实际 %d 个：%q", Placeholder, n, raw)
	}
}

// Path 返回第 index 帧的资源路径。
func (t Template) Path(index int) string {
	return strings.Replace(t.raw, Placeholder, FormatNumber(index), 1)
}

func (t Template) String() string { return t.raw }

// IsZero 表示模板未初始化。
func (t Template) IsZero() bool { return t.raw == "" }

// FormatNumber 把帧号格式化为至少 3 位的补零字符串。
func FormatNumber(index int) string {
	return fmt.Sprintf("%03d", index)
}

// 帧文件名：任意前缀 + 3~5 位数字 + imgx.Probe 能识别的图片扩展名（不含 avif）。
var nameRE = regexp.MustCompile(`(?i)^(.*?)([0-9]{3,5})(\.(?:jpe?g|png|gif|webp))$`)

// Name 是从文件名/URL 末段解析出的帧名。
type Name struct {
	Prefix string
	Number int
	Ext    string
}

// Template 把帧名还原为模板（前缀 + {frame} + 扩展名）。
func (n Name) Template() string {
	return n.Prefix + Placeholder + n.Ext
}

// ParseName 从 s（文件名、路径或 URL）中解析帧名。
//
// 只看最后一个路径段，query/fragment 会被忽略；帧号必须 >= 1。
func ParseName(s string) (Name, bool) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	dir := ""
	if i := strings.LastIndexAny(s, `/\`); i >= 0 {
		dir, s = s[:i+1], s[i+1:]
	}

	m := nameRE.FindStringSubmatch(s)
	if len(m) != 4 {
		return Name{}, false
	}
	num, err := strconv.Atoi(m[2])
	if err != nil || num < 1 {
		return Name{}, false
	}
	// 帧号超过 3 位时不能带前导 0（%03d 不会生成这种名字）。
	if len(m[2]) > 3 && m[2][0] == '0' {
		return Name{}, false
	}
	return Name{Prefix: dir + m[1], Number: num, Ext: m[3]}, true
}
