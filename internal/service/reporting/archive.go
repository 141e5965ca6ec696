package reporting

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/starland/ledger/internal/config"
	"github.com/starland/ledger/internal/repository/sheets"
)

// Archiver keeps a copy of a rendered report and returns where it went.
type Archiver interface {
	Archive(ctx context.Context, doc Document) (string, error)
}

// S3Archiver uploads rendered reports to a bucket under reports/.
type S3Archiver struct {
	uploader *s3manager.Uploader
	bucket   string
}

// NewS3Archiver opens an AWS session for the configured region.
func NewS3Archiver(cfg config.S3Config) (*S3Archiver, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.Region)})
	if err != nil {
		return nil, fmt.Errorf("failed to open aws session: %w", err)
	}
	return &S3Archiver{uploader: s3manager.NewUploader(sess), bucket: cfg.Bucket}, nil
}

// Archive implements Archiver.
func (a *S3Archiver) Archive(ctx context.Context, doc Document) (string, error) {
	out, err := a.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(path.Join("reports", doc.Filename)),
		Body:        bytes.NewReader(doc.Body),
		ContentType: aws.String(doc.ContentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", doc.Filename, err)
	}
	return out.Location, nil
}

// SheetsArchiver appends report rows to a spreadsheet tab named after the report.
type SheetsArchiver struct {
	repo sheets.Repository
}

// NewSheetsArchiver wraps a sheets repository.
func NewSheetsArchiver(repo sheets.Repository) *SheetsArchiver {
	return &SheetsArchiver{repo: repo}
}

// Archive implements Archiver. The header row is written first.
func (a *SheetsArchiver) Archive(ctx context.Context, doc Document) (string, error) {
	t := doc.Table
	header := make([]interface{}, len(t.Headers))
	for i, h := range t.Headers {
		header[i] = h
	}
	rows := append([][]interface{}{header}, t.Values()...)

	if err := a.repo.AppendRows(ctx, t.ID, rows); err != nil {
		return "", err
	}
	return "sheets:" + t.ID, nil
}
