package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/OFFIS-RIT/graph-explorer/internal/util"
	"github.com/OFFIS-RIT/graph-explorer/pkg/store"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// ErrNotFound is returned for keys that do not exist in the bucket.
var ErrNotFound = store.ErrNotFound

func NewS3Client(ctx context.Context) (*s3.Client, error) {
	region := util.GetEnvString("AWS_REGION", "us-east-1")
	endpoint := util.GetEnv("AWS_ENDPOINT")
	accessKey := util.GetEnv("AWS_ACCESS_KEY")
	secretKey := util.GetEnv("AWS_SECRET_KEY")

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(endpoint))
	}
	if accessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey,
			secretKey,
			"",
		)))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return client, nil
}

type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type objectClient interface {
	objectGetter
	objectPutter
}

// GetFile reads the object under key. Missing objects yield ErrNotFound.
func GetFile(ctx context.Context, client objectGetter, bucket string, key string) ([]byte, error) {
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get file from S3: %w", err)
	}
	defer result.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, result.Body); err != nil {
		return nil, fmt.Errorf("failed to read file contents: %w", err)
	}
	return buf.Bytes(), nil
}

// PutFile writes data under key with the given content type.
func PutFile(ctx context.Context, client objectPutter, bucket string, key string, contentType string, data []byte) error {
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload file to S3: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
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

// DocumentStore serves the JSON documents of the case dataset.
//
// A DocumentStore should be created using NewDocumentStore.
type DocumentStore struct {
	client objectClient
	bucket string
}

func NewDocumentStore(client objectClient, bucket string) *DocumentStore {
	return &DocumentStore{client: client, bucket: bucket}
}

// Opinion is one written opinion of a case.
type Opinion struct {
	ID      string `json:"id"`
	CaseID  int64  `json:"case_id"`
	Content string `json:"content"`
}

// OpinionKey is the object key holding the opinions of caseID.
func OpinionKey(caseID string) string {
	return fmt.Sprintf("opinions/%s.json", caseID)
}

// Opinions returns every opinion stored for caseID.
func (d *DocumentStore) Opinions(ctx context.Context, caseID string) ([]Opinion, error) {
	if caseID == "" {
		return nil, errors.New("case id is required")
	}
	data, err := GetFile(ctx, d.client, d.bucket, OpinionKey(caseID))
	if err != nil {
		return nil, err
	}
	var opinions []Opinion
	if err := json.Unmarshal(data, &opinions); err != nil {
		return nil, fmt.Errorf("decode opinions of case %s: %w", caseID, err)
	}
	return opinions, nil
}

// PutOpinions replaces the opinions stored for caseID.
func (d *DocumentStore) PutOpinions(ctx context.Context, caseID string, opinions []Opinion) error {
	if caseID == "" {
		return errors.New("case id is required")
	}
	if opinions == nil {
		opinions = []Opinion{}
	}
	data, err := json.Marshal(opinions)
	if err != nil {
		return fmt.Errorf("encode opinions of case %s: %w", caseID, err)
	}
	return PutFile(ctx, d.client, d.bucket, OpinionKey(caseID), "application/json", data)
}

// OpinionsForCase returns the opinion texts of caseID, skipping empty ones.
func (d *DocumentStore) OpinionsForCase(ctx context.Context, caseID string) ([]string, error) {
	opinions, err := d.Opinions(ctx, caseID)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(opinions))
	for _, o := range opinions {
		if o.Content != "" {
			texts = append(texts, o.Content)
		}
	}
	return texts, nil
}

// OpinionForCase returns the first opinion of caseID.
func (d *DocumentStore) OpinionForCase(ctx context.Context, caseID string) (Opinion, error) {
	opinions, err := d.Opinions(ctx, caseID)
	if err != nil {
		return Opinion{}, err
	}
	if len(opinions) == 0 {
		return Opinion{}, fmt.Errorf("case %s: %w", caseID, ErrNotFound)
	}
	return opinions[0], nil
}
