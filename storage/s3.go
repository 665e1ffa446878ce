package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"cooking-assistant/config"
	"cooking-assistant/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ObjectStore ist der Teil des S3-Clients, den Backup und Rotation brauchen.
type ObjectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// NewS3Client erstellt einen S3-Client für einen S3-kompatiblen Endpunkt.
func NewS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.S3URL,
				SigningRegion:     cfg.S3Region,
				HostnameImmutable: true,
			}, nil
		},
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3Key, cfg.S3Secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg), nil
}

// EncodeSnapshot serialisiert einen Snapshot als gzip-komprimiertes JSON.
func EncodeSnapshot(snap *models.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gz).Encode(snap); err != nil {
		return nil, fmt.Errorf("snapshot kodieren: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UploadSnapshot lädt den Snapshot unter key hoch und gibt den Link zurück.
func UploadSnapshot(ctx context.Context, client ObjectStore, cfg *config.Config, key string, snap *models.Snapshot) (string, error) {
	data, err := EncodeSnapshot(snap)
	if err != nil {
		return "", err
	}
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(cfg.S3Bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(data),
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s", cfg.S3URL, cfg.S3Bucket, key), nil
}

// RotateSnapshots behält die keep neuesten Objekte unter prefix und löscht den Rest.
// Gibt die gelöschten Keys zurück; Fehler beim Löschen einzelner Objekte brechen nicht ab.
func RotateSnapshots(ctx context.Context, client ObjectStore, bucket, prefix string, keep int) ([]string, error) {
	if keep < 0 {
		return nil, fmt.Errorf("keep darf nicht negativ sein: %d", keep)
	}
	output, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, err
	}

	if len(output.Contents) <= keep {
		return nil, nil
	}

	objects := append([]types.Object(nil), output.Contents...)
	sort.Slice(objects, func(i, j int) bool {
		return aws.ToTime(objects[i].LastModified).After(aws.ToTime(objects[j].LastModified))
	})

	var deleted []string
	var firstErr error
	for _, obj := range objects[keep:] {
		_, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    obj.Key,
		})
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("löschen von %s: %w", aws.ToString(obj.Key), err)
			}
			continue
		}
		deleted = append(deleted, aws.ToString(obj.Key))
	}
	return deleted, firstErr
}
