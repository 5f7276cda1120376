package main

import (
	"errors"
	"testing"

	"github.com/John-Robertt/framefeed/internal/config"
)

func TestParseRunArgs(t *testing.T) {
	ra, err := parseRunArgs([]string{"https://cdn.test/hero-{frame}.jpg", "--frames", "120", "--scrub=false"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if ra.Template != "https://cdn.test/hero-{frame}.jpg" || ra.Frames != 120 || !ra.FramesSet {
		t.Fatalf("解析结果不符合预期：%+v", ra)
	}
	if ra.Scrub || !ra.ScrubSet {
		t.Fatalf("--scrub=false 应显式关闭：%+v", ra)
	}

	ra, err = parseRunArgs([]string{"--frames=9", "--scrub"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if ra.Template != "" || ra.Frames != 9 || !ra.Scrub || !ra.ScrubSet {
		t.Fatalf("解析结果不符合预期：%+v", ra)
	}
}

func TestParseRunArgs_Errors(t *testing.T) {
	for _, args := range [][]string{
		{"--frames"},
		{"--frames", "0"},
		{"--frames=abc"},
		{"--scrub=yes"},
		{"--provider", "x"},
		{"a-{frame}.jpg", "b-{frame}.jpg"},
	} {
		if _, err := parseRunArgs(args); err == nil {
			t.Fatalf("期望参数错误：%v", args)
		}
	}
}

func TestReportForConfigError(t *testing.T) {
	err := &config.Error{Code: config.ErrCodeNotFound, Path: "/tmp/framefeed.json", Err: errors.New("missing")}
	rr := reportForConfigError(runArgs{Frames: 3}, err)

	if rr.Error == nil || rr.Error.Code != config.ErrCodeNotFound {
		t.Fatalf("期望 error.code=%q，实际 %+v", config.ErrCodeNotFound, rr.Error)
	}
	if rr.Complete() {
		t.Fatalf("配置错误的报告不应 Complete")
	}
	if rr.Failures == nil {
		t.Fatalf("failures 应为空数组而不是 nil（JSON 输出 [] 而不是 null）")
	}
}
