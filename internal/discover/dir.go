package discover

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Dir 扫描 root 下的帧文件并推断序列模板（模板为绝对路径，可直接交给 run）。
//
// 规则：
// - 永久排除：<root>/cache/（帧缓存自身不应被当作输入）
// - 以 '.' 开头的文件/目录跳过（临时文件、隐藏目录）
// - 只做 WalkDir，不读文件内容
func Dir(root string) (Result, error) {
	root = filepath.Clean(root)
	cacheDir := filepath.Join(root, "cache")

	names := make([]string, 0, 256)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if isUnder(path, cacheDir) {
				return filepath.SkipDir
			}
			return nil
		}
		names = append(names, path)
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Strings(names)
	return fromNames(root, names)
}

func isUnder(path, base string) bool {
	path = filepath.Clean(path)
	if path == base {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(path, base+sep)
}
