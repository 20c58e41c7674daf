package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/giftkeeper/giftkeeper/giftkeeper/gift"
)

// SpacesBackup uploads snapshots of the gift pool to an S3-compatible
// bucket (DigitalOcean Spaces). It is a secondary copy on top of the
// primary backend, not a source of truth; uploads are best effort.
type SpacesBackup struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewSpacesBackup(key, secret, region, bucket, prefix string) (*SpacesBackup, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.digitaloceanspaces.com", region),
		}, nil
	})

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load backup storage config: %w", err)
	}

	return &SpacesBackup{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// Upload writes the snapshot under a date-stamped key plus a "latest" key.
func (s *SpacesBackup) Upload(ctx context.Context, entries []*gift.Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode gift pool snapshot: %w", err)
	}

	contentType := "application/json"
	for _, key := range []string{
		fmt.Sprintf("%s/gifts-%s.json", s.prefix, time.Now().UTC().Format("2006-01-02")),
		fmt.Sprintf("%s/gifts-latest.json", s.prefix),
	} {
		if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      &s.bucket,
			Key:         &key,
			Body:        bytes.NewReader(data),
			ContentType: &contentType,
		}); err != nil {
			return fmt.Errorf("failed to upload snapshot %s: %w", key, err)
		}
	}
	return nil
}
