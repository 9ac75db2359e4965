package fileutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// ErrCrossDevice reports a hardlink attempted across filesystems.
var ErrCrossDevice = errors.New("source and destination are on different filesystems")

// CopyFile streams src to dst, carrying over the source permission bits.
func CopyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	return CopyFileMode(src, dst, info.Mode().Perm())
}

// CopyFileMode streams src to dst, setting the given file mode on dst.
func CopyFileMode(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// Link hardlinks src to dst. Failures carry a hint toward copy mode, and
// cross-device attempts additionally match ErrCrossDevice.
func Link(src, dst string) error {
	err := os.Link(src, dst)
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.EXDEV) {
		return fmt.Errorf("hardlink %s: %w (enable copy mode for cross-filesystem mirrors): %w", dst, ErrCrossDevice, err)
	}
	return fmt.Errorf("hardlink %s (copy mode may help on filesystems without hardlinks): %w", dst, err)
}

// Place puts src at dst unchanged, replacing whatever dst held. It hardlinks
// unless copyMode is set.
func Place(src, dst string, copyMode bool) error {
	if err := RemoveIfExists(dst); err != nil {
		return fmt.Errorf("remove existing %s: %w", dst, err)
	}
	if copyMode {
		if err := CopyFile(src, dst); err != nil {
			return fmt.Errorf("copy %s: %w", dst, err)
		}
		return nil
	}
	return Link(src, dst)
}

// RemoveIfExists removes path, treating a missing file as success.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reports whether path can be stat'ed.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
