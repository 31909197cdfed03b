// utils/r2.go
package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var r2Client *s3.Client
var r2Bucket string

// InitR2 configures the Cloudflare R2 client used to hand certificate
// issuance artifacts to the external rendering service. Returns false when
// the env vars are absent, in which case publishing is disabled.
func InitR2() (bool, error) {
	accountID := os.Getenv("CLOUDFLARE_ACCOUNT_ID")
	accessKeyID := os.Getenv("R2_ACCESS_KEY_ID")
	accessKeySecret := os.Getenv("R2_ACCESS_KEY_SECRET")
	r2Bucket = os.Getenv("R2_BUCKET_NAME")
	if accountID == "" || accessKeyID == "" || accessKeySecret == "" || r2Bucket == "" {
		return false, nil
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID, accessKeySecret, "",
		)),
		config.WithEndpointResolver(aws.EndpointResolverFunc(
			func(service, region string) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID),
				}, nil
			}),
		),
	)
	if err != nil {
		return false, fmt.Errorf("failed to load R2 config: %w", err)
	}

	r2Client = s3.NewFromConfig(cfg)
	return true, nil
}

// R2CertificatePublisher writes one JSON object per issued certificate under
// certificates/<user>/<slug>.json. The renderer polls the bucket; the object
// carries everything it needs except the visual template.
type R2CertificatePublisher struct{}

func NewR2CertificatePublisher() *R2CertificatePublisher {
	return &R2CertificatePublisher{}
}

func (p *R2CertificatePublisher) PublishIssuance(ctx context.Context, userID, projectID, projectSlug string, issuedAt time.Time) error {
	if r2Client == nil {
		return fmt.Errorf("R2 client not initialized")
	}

	payload, err := json.Marshal(map[string]interface{}{
		"user_id":      userID,
		"project_id":   projectID,
		"project_slug": projectSlug,
		"issued_at":    issuedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to encode issuance artifact: %w", err)
	}

	key := fmt.Sprintf("certificates/%s/%s.json", userID, projectSlug)
	_, err = r2Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r2Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload issuance artifact: %w", err)
	}
	return nil
}
