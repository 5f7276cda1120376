// Package fsx 提供帧缓存与 report.json 共用的落盘方式。
package fsx

import (
	"os"
	"path/filepath"
	"runtime"
)

// rename 可在测试中替换，用来模拟替换失败。
var rename = os.Rename

// WriteFileAtomic 把 data 写成 dir/name：先写同目录下的 "."+name+".tmp-*"，fsync 后 rename 覆盖。
// 并发读者只会看到旧内容或完整的新内容；任何一步失败都不会留下临时文件。
func WriteFileAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := stage(dir, name, data)
	if err != nil {
		return err
	}
	if err := rename(tmp, filepath.Join(dir, name)); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	syncDir(dir)
	return nil
}

// stage 写出已 fsync 的临时文件并返回其路径。
func stage(dir, name string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return "", err
	}
	path := f.Name()

	_, err = f.Write(data)
	if err == nil {
		err = f.Chmod(0o644)
	}
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

// syncDir 让 rename 本身落盘；忽略错误，Windows 不支持对目录 fsync。
func syncDir(dir string) {
	if runtime.GOOS == "windows" {
		return
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
}
