package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/framefeed/internal/infra/fsx"
)

// Store 提供 <root>/cache/frames/<sequence>/ 下的帧文件缓存读写。
//
// 约束：
// - ReadOnly=true：只允许读（例如只想验证缓存命中率）
// - 文件名来自帧路径的最后一段（hero-007.jpg），不做哈希，方便人工检查
type Store struct {
	Root     string
	ReadOnly bool
}

var ErrReadOnly = errors.New("cache: read-only")

func New(root string, readOnly bool) Store {
	return Store{
		Root:     filepath.Clean(strings.TrimSpace(root)),
		ReadOnly: readOnly,
	}
}

// FramePath 返回帧缓存文件的绝对路径。
func (s Store) FramePath(sequence, name string) (string, error) {
	seq, err := cleanSequence(sequence)
	if err != nil {
		return "", err
	}
	n, err := cleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, "cache", "frames", seq, n), nil
}

// ReadFrame 读取缓存；未命中返回 ok=false 且 err=nil。
func (s Store) ReadFrame(sequence, name string) ([]byte, bool, error) {
	path, err := s.FramePath(sequence, name)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

// WriteFrame 原子写入缓存（覆盖同名文件）。
func (s Store) WriteFrame(sequence, name string, data []byte) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	path, err := s.FramePath(sequence, name)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(filepath.Dir(path), filepath.Base(path), data)
}

var (
	sequenceRE = regexp.MustCompile(`^[a-z0-9_-]+$`)
	nameRE     = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]*$`)
)

func cleanSequence(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("sequence 不能为空")
	}
	// 最小约束：避免路径穿越。
	if !sequenceRE.MatchString(s) {
		return "", fmt.Errorf("非法 sequence：%q", s)
	}
	return s, nil
}

func cleanName(n string) (string, error) {
	n = strings.TrimSpace(n)
	if n == "" {
		return "", fmt.Errorf("帧文件名不能为空")
	}
	if !nameRE.MatchString(n) {
		return "", fmt.Errorf("非法帧文件名：%q", n)
	}
	return n, nil
}
