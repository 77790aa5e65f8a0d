package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"subsettle/internal/models"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ArchiveService keeps an off-database copy of every receipt in object
// storage, one JSON object per settlement.
type ArchiveService interface {
	StoreReceipt(ctx context.Context, receipt *models.Receipt) error
	// ReceiptURL returns a presigned download link for an archived receipt.
	ReceiptURL(ctx context.Context, receipt *models.Receipt, expiry time.Duration) (string, error)
	EnsureBucketExists(ctx context.Context, bucketName string) error
}

type archiveService struct {
	client *minio.Client
	bucket string
}

func NewArchiveService(endpoint, accessKey, secretKey, bucket string, useSSL bool) (ArchiveService, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}
	return &archiveService{client: client, bucket: bucket}, nil
}

func receiptObjectName(receipt *models.Receipt) string {
	return fmt.Sprintf("receipts/%s/%s.json", receipt.Address, receipt.ID.String())
}

func (a *archiveService) StoreReceipt(ctx context.Context, receipt *models.Receipt) error {
	data, err := json.Marshal(receipt)
	if err != nil {
		return err
	}

	_, err = a.client.PutObject(ctx, a.bucket, receiptObjectName(receipt), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

func (a *archiveService) ReceiptURL(ctx context.Context, receipt *models.Receipt, expiry time.Duration) (string, error) {
	url, err := a.client.PresignedGetObject(ctx, a.bucket, receiptObjectName(receipt), expiry, nil)
	if err != nil {
		return "", err
	}
	return url.String(), nil
}

func (a *archiveService) EnsureBucketExists(ctx context.Context, bucketName string) error {
	found, err := a.client.BucketExists(ctx, bucketName)
	if err != nil {
		return err
	}
	if !found {
		return a.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
	}
	return nil
}
