package audit

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/solarpro/erp/pkg/audit")

// DefaultArchiveBatchSize is the number of buffered events that forces a flush
const DefaultArchiveBatchSize = 500

// ObjectPutter is the subset of the S3 API the archive writes through
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ArchiveConfig locates the bucket audit batches are written to
type ArchiveConfig struct {
	Bucket       string
	Region       string
	Endpoint     string // MinIO or other S3-compatible endpoint
	Prefix       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	BatchSize    int
}

// NewS3Client builds an S3 client for cfg and creates the bucket when missing.
// Without static keys the default AWS credential chain is used.
func NewS3Client(ctx context.Context, cfg ArchiveConfig) (*s3.Client, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	if err := ensureBucket(ctx, client, cfg.Bucket); err != nil {
		return nil, err
	}
	return client, nil
}

func ensureBucket(ctx context.Context, client *s3.Client, bucket string) error {
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err == nil {
		return nil
	}
	_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	var owned *s3types.BucketAlreadyOwnedByYou
	var exists *s3types.BucketAlreadyExists
	if err != nil && !errors.As(err, &owned) && !errors.As(err, &exists) {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

// ArchiveLogger buffers events as JSON lines and uploads each batch as one
// object under <prefix>/YYYY/MM/DD/. Buffered events are lost if the
// process dies before Flush or Close.
type ArchiveLogger struct {
	putter    ObjectPutter
	bucket    string
	prefix    string
	batchSize int
	now       func() time.Time

	mu    sync.Mutex
	buf   bytes.Buffer
	count int
}

// NewArchiveLogger creates an archive writing through putter
func NewArchiveLogger(putter ObjectPutter, cfg ArchiveConfig) (*ArchiveLogger, error) {
	if putter == nil {
		return nil, errors.New("object putter is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultArchiveBatchSize
	}
	return &ArchiveLogger{
		putter:    putter,
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		batchSize: batch,
		now:       time.Now,
	}, nil
}

// Log buffers event, uploading the batch once it is full
func (a *ArchiveLogger) Log(ctx context.Context, event *AuditEvent) error {
	line, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}

	a.mu.Lock()
	a.buf.Write(line)
	a.buf.WriteByte('\n')
	a.count++
	full := a.count >= a.batchSize
	a.mu.Unlock()

	if full {
		return a.Flush(ctx)
	}
	return nil
}

// Pending reports how many events are buffered
func (a *ArchiveLogger) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// Flush uploads buffered events. On failure they are kept for the next flush.
func (a *ArchiveLogger) Flush(ctx context.Context) error {
	a.mu.Lock()
	if a.count == 0 {
		a.mu.Unlock()
		return nil
	}
	data := bytes.Clone(a.buf.Bytes())
	count := a.count
	a.buf.Reset()
	a.count = 0
	a.mu.Unlock()

	key := a.objectKey()
	ctx, span := tracer.Start(ctx, "audit.archive.flush", trace.WithAttributes(
		attribute.String("s3.bucket", a.bucket),
		attribute.String("s3.key", key),
		attribute.Int("audit.events", count),
	))
	defer span.End()

	sum := sha256.Sum256(data)
	_, err := a.putter.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/x-ndjson"),
		Metadata:    map[string]string{"checksum-sha256": hex.EncodeToString(sum[:])},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		a.requeue(data, count)
		return fmt.Errorf("failed to upload audit batch: %w", err)
	}
	return nil
}

// requeue puts a failed batch back in front of anything logged since
func (a *ArchiveLogger) requeue(data []byte, count int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rest := bytes.Clone(a.buf.Bytes())
	a.buf.Reset()
	a.buf.Write(data)
	a.buf.Write(rest)
	a.count += count
}

func (a *ArchiveLogger) objectKey() string {
	now := a.now().UTC()
	name := fmt.Sprintf("%s-%s.jsonl", now.Format("20060102T150405Z"), uuid.NewString())
	return path.Join(a.prefix, now.Format("2006/01/02"), name)
}

// Close uploads whatever is still buffered
func (a *ArchiveLogger) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return a.Flush(ctx)
}
