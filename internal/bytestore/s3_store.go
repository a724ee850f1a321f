package bytestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Store keeps blobs as objects. Directories are zero-length marker
// objects whose key ends in "/".
type S3Store struct {
	client     *minio.Client
	bucketName string
	region     string
	initOnce   sync.Once
	initErr    error
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Store{client: client, bucketName: bucket, region: region}, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("store is nil")
	}
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucketName)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

func (s *S3Store) Write(ctx context.Context, key string, data []byte) error {
	k, err := NormalizeKey(key)
	if err != nil {
		return err
	}
	if k == "" {
		return fmt.Errorf("key is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	_, err = s.client.PutObject(ctx, s.bucketName, k, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	return err
}

// WriteFrom streams r with an unknown size; minio switches to multipart.
func (s *S3Store) WriteFrom(ctx context.Context, key string, r io.Reader) (int64, error) {
	k, err := NormalizeKey(key)
	if err != nil {
		return 0, err
	}
	if k == "" {
		return 0, fmt.Errorf("key is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return 0, fmt.Errorf("ensure bucket: %w", err)
	}
	info, err := s.client.PutObject(ctx, s.bucketName, k, r, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

func (s *S3Store) Read(ctx context.Context, key string) ([]byte, error) {
	k, err := NormalizeKey(key)
	if err != nil {
		return nil, err
	}
	if k == "" {
		return nil, fmt.Errorf("key is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	obj, err := s.client.GetObject(ctx, s.bucketName, k, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *S3Store) MakeDir(ctx context.Context, dirKey string) error {
	k, err := NormalizeKey(dirKey)
	if err != nil {
		return err
	}
	if k == "" {
		return nil
	}
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	_, err = s.client.PutObject(ctx, s.bucketName, k+"/", bytes.NewReader(nil), 0, minio.PutObjectOptions{
		ContentType: "application/x-directory",
	})
	return err
}

func (s *S3Store) ListChildren(ctx context.Context, dirKey string) ([]Entry, error) {
	k, err := NormalizeKey(dirKey)
	if err != nil {
		return nil, err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	prefix := ""
	if k != "" {
		prefix = k + "/"
	}
	found := false
	seen := make(map[string]bool)
	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: false,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		found = true
		if obj.Key == prefix {
			continue // the directory marker itself
		}
		rest := strings.TrimPrefix(obj.Key, prefix)
		isDir := strings.HasSuffix(rest, "/")
		name := strings.TrimSuffix(rest, "/")
		if name == "" {
			continue
		}
		seen[name] = seen[name] || isDir
	}
	if !found && k != "" {
		return nil, ErrNotFound
	}
	out := make([]Entry, 0, len(seen))
	for name, isDir := range seen {
		out = append(out, Entry{Name: name, IsDir: isDir})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *S3Store) RemoveAll(ctx context.Context, prefix string) error {
	k, err := NormalizeKey(prefix)
	if err != nil {
		return err
	}
	if k == "" {
		return fmt.Errorf("bytestore: refusing to remove bucket root")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	objects := make(chan minio.ObjectInfo)
	go func() {
		defer close(objects)
		_, statErr := s.client.StatObject(ctx, s.bucketName, k, minio.StatObjectOptions{})
		if statErr == nil {
			objects <- minio.ObjectInfo{Key: k}
		}
		for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
			Prefix:    k + "/",
			Recursive: true,
		}) {
			if obj.Err != nil {
				return
			}
			objects <- obj
		}
	}()
	for rerr := range s.client.RemoveObjects(ctx, s.bucketName, objects, minio.RemoveObjectsOptions{}) {
		if rerr.Err != nil {
			return fmt.Errorf("remove %s: %w", rerr.ObjectName, rerr.Err)
		}
	}
	return nil
}
