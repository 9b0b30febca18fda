// Package storage keeps notice attachments in an object store.
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Upload is one file on its way to the blob store.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.ReadSeeker
}

// BlobStore writes and removes objects and knows their public URLs.
type BlobStore interface {
	Put(ctx context.Context, objectName string, u Upload) (publicURL string, err error)
	// Delete removes every named object, returning the first failure.
	Delete(ctx context.Context, objectNames []string) error
}

// NoticeObjectName places a file under avisos/{noticeID}/.
func NoticeObjectName(noticeID, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("avisos/%s/%d-%s%s", noticeID, time.Now().UTC().Unix(), uuid.New().String(), ext)
}

func publicURL(domain, bucket, objectName string) string {
	domain = strings.TrimRight(domain, "/")
	if bucket == "" {
		return domain + "/" + objectName
	}
	return domain + "/" + bucket + "/" + objectName
}
