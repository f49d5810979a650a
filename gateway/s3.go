package gateway

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"vidproc/logger"
)

// S3Options configures the S3 backend.
type S3Options struct {
	Region    string
	AccessKey string // empty to use the default AWS credential chain
	SecretKey string
	Endpoint  string // optional, for S3 compatible stores
	PathStyle bool
}

// S3 talks to Amazon S3 or an S3 compatible store.
type S3 struct {
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
	buckets    Buckets
}

// NewS3 builds the client. Static keys win over the default credential chain.
func NewS3(ctx context.Context, buckets Buckets, opts S3Options) (*S3, error) {
	var client *s3.Client

	customize := func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	}

	if opts.AccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")
		client = s3.New(s3.Options{
			Region:      opts.Region,
			Credentials: creds,
		}, customize)
	} else {
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		client = s3.NewFromConfig(cfg, customize)
	}

	return &S3{
		client:     client,
		uploader:   manager.NewUploader(client),
		downloader: manager.NewDownloader(client),
		buckets:    buckets,
	}, nil
}

func (s *S3) Fetch(ctx context.Context, key, localPath string) error {
	bucket := s.buckets.Inbound

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = s.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return fmt.Errorf("s3://%s/%s: %w", bucket, key, ErrNotFound)
		}
		return fmt.Errorf("failed to download object %s from bucket %s: %w", key, bucket, err)
	}

	logger.Infof("Downloaded s3://%s/%s to %s", bucket, key, localPath)
	return nil
}

func (s *S3) Publish(ctx context.Context, localPath, key string) error {
	bucket := s.buckets.Outbound

	f, err := os.Open(localPath)
	if err != nil {
		return &PublishError{Step: StepUpload, Bucket: bucket, Key: key, Err: err}
	}
	defer f.Close()

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentTypeFor(localPath)),
	})
	if err != nil {
		return &PublishError{Step: StepUpload, Bucket: bucket, Key: key, Err: err}
	}

	_, err = s.client.PutObjectAcl(ctx, &s3.PutObjectAclInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		ACL:    types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return &PublishError{Step: StepVisibility, Bucket: bucket, Key: key, Err: err}
	}

	logger.Infof("Published %s to s3://%s/%s (public)", localPath, bucket, key)
	return nil
}

// isS3NotFound covers GetObject (NoSuchKey) and the HEAD the downloader may
// issue first (NotFound, no body).
func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
