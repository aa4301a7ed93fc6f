package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const s3Scheme = "s3://"

// S3API - the subset of the S3 client used for listing and reading.
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 - objects addressed as s3://bucket/key.
type S3 struct {
	Client S3API
}

// NewS3 - builds an S3 file system from the default credential chain.
// An empty region defers to the environment.
func NewS3(ctx context.Context, region string) (*S3, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &S3{Client: s3.NewFromConfig(cfg)}, nil
}

// splitURI - s3://bucket/key into bucket and key.
func splitURI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, s3Scheme)
	if !ok {
		return "", "", fmt.Errorf("%w. not an s3 uri: %v", ErrBadLocation, uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("%w. missing bucket: %v", ErrBadLocation, uri)
	}
	return bucket, key, nil
}

// List - see FS. Only objects directly under the dir prefix are considered.
func (s *S3) List(ctx context.Context, dir, pattern string) ([]string, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("%w. pattern: %v", err, pattern)
	}
	bucket, prefix, err := splitURI(dir)
	if err != nil {
		return nil, err
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	delimiter := "/"

	var names []string
	p := s3.NewListObjectsV2Paginator(s.Client, &s3.ListObjectsV2Input{
		Bucket:    &bucket,
		Prefix:    &prefix,
		Delimiter: &delimiter,
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			if obj.Key == nil || strings.HasSuffix(*obj.Key, "/") {
				continue
			}
			if ok, _ := path.Match(pattern, path.Base(*obj.Key)); ok {
				names = append(names, s3Scheme+bucket+"/"+*obj.Key)
			}
		}
	}
	slices.Sort(names)
	return names, nil
}

// Open - see FS. The object body streams from S3.
func (s *S3) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	bucket, key, err := splitURI(name)
	if err != nil {
		return nil, err
	}
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}
