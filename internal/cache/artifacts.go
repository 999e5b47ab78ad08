package cache

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Norgate-AV/bundler/internal/codes"
	"github.com/Norgate-AV/bundler/internal/target"
)

// Install copies a compiled library into destDir under name. When present,
// debug symbols next to the artifact are copied too, renamed after name.
// Returns the path of the installed library.
func Install(artifact, destDir, name string, t target.Target) (string, error) {
	dst := filepath.Join(destDir, name)

	if err := CopyFile(artifact, dst); err != nil {
		return "", codes.FS("could not copy "+artifact, dst, err)
	}

	symbols := t.DebugSymbolsName(filepath.Base(artifact))
	if symbols == "" {
		return dst, nil
	}

	src := filepath.Join(filepath.Dir(artifact), symbols)
	info, err := os.Stat(src)
	if err != nil {
		return dst, nil
	}

	symbolsDst := filepath.Join(destDir, t.DebugSymbolsName(name))
	if info.IsDir() {
		err = CopyDir(src, symbolsDst)
	} else {
		err = CopyFile(src, symbolsDst)
	}
	if err != nil {
		return "", codes.FS("could not copy "+src, symbolsDst, err)
	}

	return dst, nil
}

// CopyDir copies a directory tree, replacing whatever is at dst
func CopyDir(src, dst string) error {
	if err := os.RemoveAll(dst); err != nil {
		return err
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		out := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(out, 0o755)
		}

		return CopyFile(path, out)
	})
}

// CopyFile copies a file from src to dst, following symlinks and keeping the mode
func CopyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}

	defer srcFile.Close()

	// Create parent directory if needed
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	// a read-only file left by a previous copy cannot be truncated
	_ = os.Remove(dst)

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}

	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}

	// Preserve file permissions, copies stay writable for post-processing
	srcInfo, err := srcFile.Stat()
	if err != nil {
		return err
	}

	return os.Chmod(dst, srcInfo.Mode().Perm()|0o200)
}
