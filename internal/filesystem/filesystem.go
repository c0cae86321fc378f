// Package filesystem manages the on-disk photo and video files referenced by
// the photo store.
package filesystem

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CaptureTimeLayout formats timestamps embedded in photo and video file names.
const CaptureTimeLayout = "20060102_150405"

// PhotoFileName returns the canonical name for a photo captured at t.
func PhotoFileName(t time.Time) string {
	return "DENTAL_" + t.Format(CaptureTimeLayout) + ".jpg"
}

// SavePhoto copies src into dir under the canonical capture name and returns
// the destination path. If another photo already owns the name a numeric
// suffix is added; an existing file is never overwritten.
func SavePhoto(dir, src string, capturedAt time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}

	base := strings.TrimSuffix(PhotoFileName(capturedAt), ".jpg")
	for attempt := 0; attempt < 1000; attempt++ {
		name := base + ".jpg"
		if attempt > 0 {
			name = fmt.Sprintf("%s_%d.jpg", base, attempt)
		}
		dst := filepath.Join(dir, name)

		err := copyExclusive(src, dst)
		if err == nil {
			return dst, nil
		}
		if !os.IsExist(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("no free file name for %s in %s", base, dir)
}

// CopyFile copies src to dst, replacing dst if it exists.
func CopyFile(src, dst string) error {
	//nolint:gosec // G304: path is from database, controlled by application
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func copyExclusive(src, dst string) error {
	//nolint:gosec // G304: path is supplied by the user for import
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return nil
}

// DeleteFile removes a file if it exists.
func DeleteFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return os.Remove(path)
}

// FileExists reports whether the given path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// WalkFunc explores each entry under a media directory.
type WalkFunc func(path string, d fs.DirEntry) error

// WalkDir iterates over the direct entries of dir; a missing dir is empty.
func WalkDir(dir string, fn WalkFunc) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if err := fn(filepath.Join(dir, entry.Name()), entry); err != nil {
			return err
		}
	}

	return nil
}
