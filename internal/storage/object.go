package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"

	"pagebuilder/internal/domain"
)

// ObjectAPI is the subset of the S3 client the object store uses.
type ObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// ObjectPageStore keeps one JSON object per page under prefix in a bucket.
type ObjectPageStore struct {
	client ObjectAPI
	bucket string
	prefix string
}

// OpenS3 builds a store from the default AWS credential chain.
func OpenS3(ctx context.Context, bucket, prefix, region string) (*ObjectPageStore, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewObjectPageStore(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func NewObjectPageStore(client ObjectAPI, bucket, prefix string) *ObjectPageStore {
	return &ObjectPageStore{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *ObjectPageStore) key(id string) (string, error) {
	if id == "" || id == "." || id == ".." || path.Base(id) != id {
		return "", fmt.Errorf("invalid page id %q", id)
	}
	return path.Join(s.prefix, "pages", id+".json"), nil
}

func (s *ObjectPageStore) GetPage(ctx context.Context, id string) (*domain.Page, error) {
	key, err := s.key(id)
	if err != nil {
		return nil, err
	}
	return s.read(ctx, key)
}

func (s *ObjectPageStore) read(ctx context.Context, key string) (*domain.Page, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, domain.ErrPageNotFound
		}
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	var p domain.Page
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode object %s: %w", key, err)
	}
	return &p, nil
}

func (s *ObjectPageStore) write(ctx context.Context, p *domain.Page) error {
	key, err := s.key(p.ID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode page: %w", err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (s *ObjectPageStore) ListPages(ctx context.Context) ([]domain.Page, error) {
	prefix := path.Join(s.prefix, "pages") + "/"
	var pages []domain.Page
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list pages: %w", err)
		}
		for _, obj := range out.Contents {
			p, err := s.read(ctx, aws.ToString(obj.Key))
			if err != nil {
				logrus.WithError(err).WithField("key", aws.ToString(obj.Key)).Warn("skipping unreadable page object")
				continue
			}
			p.Sections = nil
			pages = append(pages, *p)
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Title < pages[j].Title })
	return pages, nil
}

func (s *ObjectPageStore) CreatePage(ctx context.Context, p *domain.Page) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	if err := s.write(ctx, p); err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	return nil
}

// SaveSections rewrites the page object with the new section list.
func (s *ObjectPageStore) SaveSections(ctx context.Context, pageID string, sections []domain.Section) error {
	p, err := s.GetPage(ctx, pageID)
	if err != nil {
		return err
	}
	p.Sections = sections
	p.UpdatedAt = time.Now().UTC()
	if err := s.write(ctx, p); err != nil {
		return fmt.Errorf("save sections: %w", err)
	}
	return nil
}
