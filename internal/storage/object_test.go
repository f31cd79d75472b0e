package storage_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/storage"
)

// fakeS3 is an in-memory bucket.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.objects[aws.ToString(in.Key)] = data
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k)})
		}
	}
	return out, nil
}

func TestObjectPageStore(t *testing.T) {
	ctx := context.Background()
	bucket := newFakeS3()
	s := storage.NewObjectPageStore(bucket, "site-pages", "tenant-a/")

	if err := s.CreatePage(ctx, &domain.Page{ID: "home", Title: "Home"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, ok := bucket.objects["tenant-a/pages/home.json"]; !ok {
		t.Fatalf("object keys = %v", bucket.objects)
	}

	if err := s.SaveSections(ctx, "home", sampleSections()); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.GetPage(ctx, "home")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Sections) != 2 {
		t.Errorf("sections = %+v", got.Sections)
	}

	pages, err := s.ListPages(ctx)
	if err != nil || len(pages) != 1 || pages[0].Title != "Home" {
		t.Errorf("list = %+v, %v", pages, err)
	}

	if _, err := s.GetPage(ctx, "missing"); !errors.Is(err, domain.ErrPageNotFound) {
		t.Errorf("missing err = %v", err)
	}
	if err := s.SaveSections(ctx, "missing", nil); !errors.Is(err, domain.ErrPageNotFound) {
		t.Errorf("save missing err = %v", err)
	}
}
