package frameseq

import "testing"

func TestTemplate_PathZeroPadded(t *testing.T) {
	tpl, err := ParseTemplate("https://cdn.test/hero/hero-{frame}.jpg")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	cases := map[int]string{
		1:    "https://cdn.test/hero/hero-001.jpg",
		7:    "https://cdn.test/hero/hero-007.jpg",
		240:  "https://cdn.test/hero/hero-240.jpg",
		1200: "https://cdn.test/hero/hero-1200.jpg",
	}
	for idx, want := range cases {
		if got := tpl.Path(idx); got != want {
			t.Fatalf("Path(%d)：期望 %q，实际 %q", idx, want, got)
		}
	}
}

func TestParseTemplate_Invalid(t *testing.T) {
	for _, raw := range []string{"", "  ", "hero-001.jpg", "{frame}/{frame}.jpg"} {
		if _, err := ParseTemplate(raw); err == nil {
			t.Fatalf("期望 %q 返回错误", raw)
		}
	}
}

func TestParseName(t *testing.T) {
	cases := []struct {
		in   string
		ok   bool
		want Name
	}{
		{in: "hero-007.jpg", ok: true, want: Name{Prefix: "hero-", Number: 7, Ext: ".jpg"}},
		{in: "/static/seq/frame_120.PNG", ok: true, want: Name{Prefix: "/static/seq/frame_", Number: 120, Ext: ".PNG"}},
		{in: "https://cdn.test/a/hero-010.webp?v=3", ok: true, want: Name{Prefix: "https://cdn.test/a/hero-", Number: 10, Ext: ".webp"}},
		{in: "hero-1200.jpg", ok: true, want: Name{Prefix: "hero-", Number: 1200, Ext: ".jpg"}},
		{in: "hero-0120.jpg", ok: false},
		{in: "hero-000.jpg", ok: false},
		{in: "hero-07.jpg", ok: false},
		{in: "hero-007.txt", ok: false},
		{in: "hero-007.avif", ok: false},
		{in: "logo.png", ok: false},
	}
	for _, c := range cases {
		got, ok := ParseName(c.in)
		if ok != c.ok {
			t.Fatalf("ParseName(%q)：期望 ok=%v，实际 %v", c.in, c.ok, ok)
		}
		if ok && got != c.want {
			t.Fatalf("ParseName(%q)：期望 %+v，实际 %+v", c.in, c.want, got)
		}
	}
}
