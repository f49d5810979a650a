package gateway

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/api/option"

	"vidproc/config"
)

// Backend names accepted by New.
const (
	BackendGCS   = "gcs"
	BackendS3    = "s3"
	BackendSFTP  = "sftp"
	BackendLocal = "local"
)

// New builds the gateway selected by backendType from the process configuration.
func New(ctx context.Context, backendType string, buckets Buckets) (Gateway, error) {
	switch backendType {
	case BackendGCS:
		var opts []option.ClientOption
		if path := config.GetGCSCredentialsFile(); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read GCS credentials: %w", err)
			}
			opts = append(opts, option.WithCredentialsJSON(data))
		}
		return NewGCS(ctx, buckets, opts...)
	case BackendS3:
		s := config.GetS3Settings()
		return NewS3(ctx, buckets, S3Options{
			Region:    s.Region,
			AccessKey: s.AccessKey,
			SecretKey: s.SecretKey,
			Endpoint:  s.Endpoint,
			PathStyle: s.PathStyle,
		})
	case BackendSFTP:
		s := config.GetSFTPSettings()
		return NewSFTP(buckets, SFTPOptions{
			Host:       s.Host,
			Port:       s.Port,
			User:       s.User,
			Password:   s.Password,
			PrivateKey: s.PrivateKey,
		})
	case BackendLocal:
		return NewLocal(config.GetLocalBucketRoot(), buckets)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", backendType)
	}
}
