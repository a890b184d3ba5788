// Package filex contains filesystem and file-content helpers used by the
// upload path.
package filex

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedImage is returned when an upload is not a JPEG or PNG.
var ErrUnsupportedImage = errors.New("unsupported image type")

// allowedImageTypes maps an accepted MIME type to the stored extension.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
}

// EnsureDir creates dir (relative paths resolve against the working
// directory) and returns its absolute path.
func EnsureDir(dir string) (string, error) {
	if !filepath.IsAbs(dir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		dir = filepath.Join(cwd, dir)
	}

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

// DetectImageType validates an upload against the accepted image formats.
// declared is the client-supplied Content-Type and head the first bytes of
// the payload (up to 512 are inspected). Both must agree on JPEG or PNG.
// It returns the canonical content type and file extension.
func DetectImageType(declared string, head []byte) (contentType, ext string, err error) {
	declared = strings.ToLower(strings.TrimSpace(strings.SplitN(declared, ";", 2)[0]))
	if _, ok := allowedImageTypes[declared]; !ok {
		return "", "", ErrUnsupportedImage
	}

	sniffed := http.DetectContentType(head)
	ext, ok := allowedImageTypes[sniffed]
	if !ok {
		return "", "", ErrUnsupportedImage
	}

	return sniffed, ext, nil
}
