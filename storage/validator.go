package storage

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
)

var (
	ErrFileTooLarge   = errors.New("file too large")
	ErrFileExtension  = errors.New("invalid file extension")
	ErrFileType       = errors.New("invalid file type")
	ErrFileUnreadable = errors.New("failed to read file header")
)

type FileValidator struct {
	allowedExt  map[string]bool
	allowedMime map[string]bool
	maxSize     int64
}

func splitList(csv string) map[string]bool {
	out := make(map[string]bool)
	for _, item := range strings.Split(csv, ",") {
		if item = strings.TrimSpace(strings.ToLower(item)); item != "" {
			out[item] = true
		}
	}
	return out
}

// NewFileValidator takes comma separated extension and MIME lists.
func NewFileValidator(extensions, mimeTypes string, maxSizeMB int) *FileValidator {
	if maxSizeMB <= 0 {
		maxSizeMB = 5
	}
	return &FileValidator{
		allowedExt:  splitList(extensions),
		allowedMime: splitList(mimeTypes),
		maxSize:     int64(maxSizeMB) << 20,
	}
}

// Validate checks size, extension and sniffed content type, and stores the
// detected type on u. The body is rewound afterwards.
func (v *FileValidator) Validate(u *Upload) error {
	if u.Size > v.maxSize {
		return fmt.Errorf("%w (max %d MB)", ErrFileTooLarge, v.maxSize>>20)
	}
	ext := strings.ToLower(filepath.Ext(u.FileName))
	if !v.allowedExt[ext] {
		return fmt.Errorf("%w: %s", ErrFileExtension, u.FileName)
	}

	buffer := make([]byte, 512)
	n, err := u.Body.Read(buffer)
	if err != nil && !errors.Is(err, io.EOF) {
		return ErrFileUnreadable
	}
	if n == 0 {
		return ErrFileUnreadable
	}
	if _, err := u.Body.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to reset file reader: %w", err)
	}

	detected := strings.ToLower(http.DetectContentType(buffer[:n]))
	if i := strings.Index(detected, ";"); i >= 0 {
		detected = strings.TrimSpace(detected[:i])
	}
	if !v.allowedMime[detected] {
		return fmt.Errorf("%w: %s", ErrFileType, detected)
	}
	u.ContentType = detected
	return nil
}
