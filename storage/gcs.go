package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const gcsPublicDomain = "https://storage.googleapis.com"

type GCSStore struct {
	Client *storage.Client
	Bucket string
}

// NewGCSStore authenticates with the service account file at credentialsPath,
// resolved against the working directory when relative.
func NewGCSStore(ctx context.Context, bucket, credentialsPath string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("missing GCS_BUCKET")
	}
	var opts []option.ClientOption
	if credentialsPath != "" {
		if !filepath.IsAbs(credentialsPath) {
			wd, err := os.Getwd()
			if err != nil {
				return nil, err
			}
			credentialsPath = filepath.Join(wd, credentialsPath)
		}
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, credentialsPath))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &GCSStore{Client: client, Bucket: bucket}, nil
}

func (g *GCSStore) Put(ctx context.Context, objectName string, u Upload) (string, error) {
	w := g.Client.Bucket(g.Bucket).Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = u.ContentType
	w.CacheControl = "no-cache"
	if _, err := io.Copy(w, u.Body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload %s: %w", u.FileName, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("upload %s: %w", u.FileName, err)
	}
	return publicURL(gcsPublicDomain, g.Bucket, objectName), nil
}

func (g *GCSStore) Delete(ctx context.Context, objectNames []string) error {
	var firstErr error
	for _, obj := range objectNames {
		if obj == "" {
			continue
		}
		err := g.Client.Bucket(g.Bucket).Object(obj).Delete(ctx)
		if err != nil && !errors.Is(err, storage.ErrObjectNotExist) && firstErr == nil {
			firstErr = fmt.Errorf("delete %s: %w", obj, err)
		}
	}
	return firstErr
}

func (g *GCSStore) Close() error {
	return g.Client.Close()
}
