package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Info holds object storage connection settings.
type S3Info struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// ObjectPutter is the subset of *minio.Client used by S3Archive.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// S3Archive uploads rendered workbooks under Prefix/reports/YYYY/MM/DD/.
type S3Archive struct {
	Client ObjectPutter
	Bucket string
	Prefix string
}

// NewS3Archive connects a minio client and makes sure the bucket exists.
func NewS3Archive(ctx context.Context, info S3Info) (*S3Archive, error) {
	client, err := minio.New(info.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(info.AccessKey, info.SecretKey, ""),
		Secure: info.UseSSL,
		Region: info.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, info.Bucket)
	if err != nil {
		return nil, fmt.Errorf("s3 bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, info.Bucket, minio.MakeBucketOptions{Region: info.Region}); err != nil {
			return nil, fmt.Errorf("s3 make bucket: %w", err)
		}
	}
	return &S3Archive{Client: client, Bucket: info.Bucket, Prefix: info.Prefix}, nil
}

// Key returns the object key for a workbook generated at t.
func (a *S3Archive) Key(t time.Time) string {
	t = t.UTC()
	return path.Join(a.Prefix, "reports", t.Format("2006/01/02"), "ledger-"+t.Format("20060102T150405Z")+".xlsx")
}

// Archive renders reps and uploads the workbook. It returns the object key.
func (a *S3Archive) Archive(ctx context.Context, reps Reports) (string, error) {
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, reps); err != nil {
		return "", fmt.Errorf("render workbook: %w", err)
	}

	key := a.Key(reps.GeneratedAt)
	_, err := a.Client.PutObject(ctx, a.Bucket, key, &buf, int64(buf.Len()), minio.PutObjectOptions{
		ContentType: ContentTypeXLSX,
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", key, err)
	}
	return key, nil
}
