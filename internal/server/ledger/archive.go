package ledger

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"
)

// Archiver keeps a copy of ledger entries before they are pruned.
type Archiver interface {
	Archive(ctx context.Context, entries []*models.ProcessedMutation) error
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Settings locates the archive bucket on an S3-compatible store.
type S3Settings struct {
	User     string
	Password string
	Bucket   string
	Region   string
	Endpoint string
}

// S3Archiver writes each batch as one JSON Lines object under
// ledger-archive/YYYY/MM/DD/<ulid>.jsonl.
type S3Archiver struct {
	client objectPutter
	bucket string
	clock  timex.Clock
}

// NewS3Archiver builds a client with static credentials. Path-style
// addressing keeps it working against MinIO.
func NewS3Archiver(ctx context.Context, s S3Settings, clock timex.Clock) (*S3Archiver, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s.User, s.Password, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.Endpoint)
		}
		o.UsePathStyle = true
	})
	return &S3Archiver{client: client, bucket: s.Bucket, clock: clock}, nil
}

type archivedEntry struct {
	AccountID  string                `json:"accountId"`
	MutationID string                `json:"mutationId"`
	Entity     string                `json:"entity"`
	RecordID   string                `json:"recordId"`
	Outcome    models.Outcome        `json:"outcome"`
	Result     models.MutationResult `json:"result"`
	AppliedAt  string                `json:"appliedAt"`
}

func (a *S3Archiver) Archive(ctx context.Context, entries []*models.ProcessedMutation) error {
	if len(entries) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range entries {
		if err := enc.Encode(archivedEntry{
			AccountID:  e.AccountID,
			MutationID: e.MutationID,
			Entity:     e.Entity,
			RecordID:   e.RecordID,
			Outcome:    e.Outcome,
			Result:     e.Result,
			AppliedAt:  models.FormatTime(e.AppliedAt),
		}); err != nil {
			return fmt.Errorf("encode %s: %w", e.MutationID, err)
		}
	}

	key := a.objectKey(a.clock.Now())
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (a *S3Archiver) objectKey(now time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())
	return fmt.Sprintf("ledger-archive/%04d/%02d/%02d/%s.jsonl", now.Year(), now.Month(), now.Day(), id)
}
