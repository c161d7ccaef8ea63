package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// UploadStore persists admitted uploads and returns the reference saved on the profile.
type UploadStore interface {
	Save(ctx context.Context, u Upload) (string, error)
	Delete(ctx context.Context, ref string) error
	Owns(ref string) bool
}

const (
	DefaultUploadDir    = "data/uploads"
	DefaultPublicPrefix = "/data/uploads"
	LegacyPublicPrefix  = "/uploads"
)

func uploadName(u Upload) string {
	ext := AllowedContentTypes[u.MediaType()]
	if e := u.Extension(); allowedExtensions[e] {
		ext = e
	}
	return fmt.Sprintf("profile-%d-%s%s", time.Now().UnixMilli(), uuid.NewString()[:8], ext)
}

// DiskUploads writes uploads to a local directory served under publicPrefix.
type DiskUploads struct {
	dir          string
	publicPrefix string
}

func NewDiskUploads(dir, publicPrefix string) (*DiskUploads, error) {
	if dir == "" {
		dir = DefaultUploadDir
	}
	if publicPrefix == "" {
		publicPrefix = DefaultPublicPrefix
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &DiskUploads{dir: dir, publicPrefix: strings.TrimSuffix(publicPrefix, "/")}, nil
}

func (d *DiskUploads) Dir() string {
	return d.dir
}

func (d *DiskUploads) PublicPrefix() string {
	return d.publicPrefix
}

func (d *DiskUploads) Save(ctx context.Context, u Upload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := uploadName(u)
	target := filepath.Join(d.dir, name)

	tmp, err := os.CreateTemp(d.dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(u.Data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close upload: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("chmod upload: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("store upload: %w", err)
	}
	return d.publicPrefix + "/" + name, nil
}

// Owns reports whether ref names a file this store wrote.
func (d *DiskUploads) Owns(ref string) bool {
	_, ok := d.fileName(ref)
	return ok
}

func (d *DiskUploads) Delete(ctx context.Context, ref string) error {
	name, ok := d.fileName(ref)
	if !ok {
		return nil
	}
	err := os.Remove(filepath.Join(d.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (d *DiskUploads) fileName(ref string) (string, bool) {
	for _, prefix := range []string{d.publicPrefix + "/", LegacyPublicPrefix + "/"} {
		if !strings.HasPrefix(ref, prefix) {
			continue
		}
		name := strings.TrimPrefix(ref, prefix)
		if name == "" || name != path.Base(name) || strings.HasPrefix(name, ".") {
			return "", false
		}
		return name, true
	}
	return "", false
}

// ObjectAPI is the part of the S3 client used for uploads.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Uploads stores uploads in a bucket and returns their public URL.
type S3Uploads struct {
	client        ObjectAPI
	bucket        string
	prefix        string
	publicBaseURL string
}

func NewS3Uploads(client ObjectAPI, bucket, prefix, publicBaseURL string) (*S3Uploads, error) {
	if bucket == "" {
		return nil, errors.New("upload bucket cannot be empty")
	}
	if err := ValidateRemoteURL("publicBaseURL", publicBaseURL); err != nil {
		return nil, fmt.Errorf("upload public base url: %w", err)
	}
	if prefix == "" {
		prefix = "uploads"
	}
	return &S3Uploads{
		client:        client,
		bucket:        bucket,
		prefix:        strings.Trim(prefix, "/"),
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
	}, nil
}

func (s *S3Uploads) Save(ctx context.Context, u Upload) (string, error) {
	key := s.prefix + "/" + uploadName(u)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(u.Data),
		ContentType: aws.String(u.MediaType()),
	})
	if err != nil {
		return "", fmt.Errorf("put upload %s: %w", key, err)
	}
	return s.publicBaseURL + "/" + key, nil
}

func (s *S3Uploads) Owns(ref string) bool {
	_, ok := s.key(ref)
	return ok
}

func (s *S3Uploads) Delete(ctx context.Context, ref string) error {
	key, ok := s.key(ref)
	if !ok {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

func (s *S3Uploads) key(ref string) (string, bool) {
	base := s.publicBaseURL + "/"
	if !strings.HasPrefix(ref, base+s.prefix+"/") {
		return "", false
	}
	key := strings.TrimPrefix(ref, base)
	if strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}
