package delivery

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"unifi-report/internal/report"
)

// S3SinkConfig configures report archival to S3-compatible storage.
type S3SinkConfig struct {
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket" validate:"required"`
	Prefix          string `yaml:"prefix"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
	Compress        bool   `yaml:"compress"`
}

// DefaultS3SinkConfig returns the default S3 sink configuration.
func DefaultS3SinkConfig() S3SinkConfig {
	return S3SinkConfig{
		Region:   "us-east-1",
		Prefix:   "reports/",
		Compress: true,
	}
}

// S3Sink archives each rendered report under a date-partitioned key, so a
// bucket listing doubles as a report history.
type S3Sink struct {
	client *s3.Client
	config S3SinkConfig
}

// NewS3Sink creates an S3 sink. Static credentials are used when given;
// otherwise the SDK's default chain (environment, IAM role) applies.
func NewS3Sink(ctx context.Context, cfg S3SinkConfig) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Sink{client: client, config: cfg}, nil
}

func (s *S3Sink) Name() string { return "s3" }

func (s *S3Sink) Deliver(ctx context.Context, r report.Report, rendered []byte) error {
	body := rendered
	contentType := "text/plain; charset=utf-8"
	var encoding *string

	if s.config.Compress {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(rendered); err != nil {
			return fmt.Errorf("s3: failed to compress report: %w", err)
		}
		if err := gz.Close(); err != nil {
			return fmt.Errorf("s3: failed to compress report: %w", err)
		}
		body = buf.Bytes()
		encoding = aws.String("gzip")
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(s.config.Bucket),
		Key:             aws.String(s.objectKey(r.GeneratedAt)),
		Body:            bytes.NewReader(body),
		ContentType:     aws.String(contentType),
		ContentEncoding: encoding,
	})
	if err != nil {
		return fmt.Errorf("s3: failed to archive report: %w", err)
	}
	return nil
}

// objectKey builds reports/<year>/<month>/report-<instant>.txt[.gz].
func (s *S3Sink) objectKey(t time.Time) string {
	t = t.UTC()
	name := fmt.Sprintf("report-%s.txt", t.Format("2006-01-02T15-04-05Z"))
	if s.config.Compress {
		name += ".gz"
	}
	prefix := strings.TrimSuffix(s.config.Prefix, "/")
	return path.Join(prefix, t.Format("2006"), t.Format("01"), name)
}
