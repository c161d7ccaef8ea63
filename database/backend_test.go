package database

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestFileBackendRoundTrip(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(filepath.Join(dir, "nested", "site-config.json"))
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	ctx := context.Background()

	if _, err := backend.Read(ctx); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("expected ErrNoDocument, got %v", err)
	}
	if err := backend.Write(ctx, []byte(`{"projects":[]}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := backend.Write(ctx, []byte(`{"profile":null,"projects":[]}`)); err != nil {
		t.Fatalf("second Write: %v", err)
	}
	data, err := backend.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != `{"profile":null,"projects":[]}` {
		t.Fatalf("unexpected content %q", data)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestFileBackendCancelledWriteKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site-config.json")
	backend, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	if err := backend.Write(context.Background(), []byte("old")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := backend.Write(ctx, []byte("new")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "old" {
		t.Fatalf("cancelled write replaced document: %q", data)
	}
}

func TestPostgresBackendUpsertsSingleRow(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	backend, err := NewPostgresBackend(db, "")
	if err != nil {
		t.Fatalf("NewPostgresBackend: %v", err)
	}
	ctx := context.Background()

	if _, err := backend.Read(ctx); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("expected ErrNoDocument, got %v", err)
	}
	if err := backend.Write(ctx, []byte(`{"profile":null,"projects":[]}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := backend.Write(ctx, []byte(`{"profile":null,"projects":[{"id":"a"}]}`)); err != nil {
		t.Fatalf("second Write: %v", err)
	}

	data, err := backend.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Contains(data, []byte(`"id":"a"`)) {
		t.Fatalf("expected latest document, got %s", data)
	}

	var count int64
	if err := db.Model(&DocumentRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single document row, got %d", count)
	}
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeObjects) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeObjects) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(params.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func TestS3BackendRoundTrip(t *testing.T) {
	objects := &fakeObjects{objects: map[string][]byte{}}
	backend, err := NewS3Backend(objects, "portfolio", "")
	if err != nil {
		t.Fatalf("NewS3Backend: %v", err)
	}
	store := newTestStore(t, backend)

	doc, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc.Projects) != 0 {
		t.Fatalf("expected empty document")
	}
	if _, ok := objects.objects["site-config.json"]; !ok {
		t.Fatalf("expected empty document to be persisted under the default key")
	}
}

func TestS3BackendRequiresBucket(t *testing.T) {
	if _, err := NewS3Backend(&fakeObjects{}, "", "key"); err == nil {
		t.Fatal("expected error for empty bucket")
	}
}
