package s3rows

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	domain "github.com/leadflow/lead-import/internal/domain/lead"
)

type Config struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
	// PathStyle is needed by most S3-compatible servers such as MinIO.
	PathStyle bool
}

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store keeps row sets as JSON objects so any worker can resume a job.
type Store struct {
	client objectAPI
	bucket string
	prefix string
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 row store: bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

func NewWithClient(client objectAPI, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *Store) Save(ctx context.Context, set domain.RowSet) error {
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode row set %s: %w", set.JobID, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(set.JobID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put row set %s: %w", set.JobID, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, jobID string) (domain.RowSet, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(jobID)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return domain.RowSet{}, domain.ErrRowSetNotFound
		}
		return domain.RowSet{}, fmt.Errorf("get row set %s: %w", jobID, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return domain.RowSet{}, fmt.Errorf("read row set %s: %w", jobID, err)
	}

	var set domain.RowSet
	if err := json.Unmarshal(data, &set); err != nil {
		return domain.RowSet{}, fmt.Errorf("decode row set %s: %w", jobID, err)
	}
	return set, nil
}

func (s *Store) key(jobID string) string {
	if s.prefix == "" {
		return jobID + ".json"
	}
	return s.prefix + "/" + jobID + ".json"
}
