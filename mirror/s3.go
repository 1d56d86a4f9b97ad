package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
	"io"
	"sync"
)

// S3Sink mirrors config files into an S3 bucket, or any S3 compatible store
// when Endpoint is set.
type S3Sink struct {
	BucketName      string     // Name of the S3 bucket
	Prefix          string     // Key prefix inside the bucket
	Region          string     // AWS region; empty uses the default chain
	Endpoint        string     // Optional custom endpoint, addressed path-style
	AccessKeyID     string     // Optional static credentials
	SecretAccessKey string     // Optional static credentials
	Client          *s3.Client // Pre-configured client; built lazily when nil
	clientOnce      sync.Once
	client          *s3.Client
	clientInitErr   error
}

func (a *S3Sink) getClient(ctx context.Context) (*s3.Client, error) {
	if a.Client != nil {
		return a.Client, nil
	}
	a.clientOnce.Do(func() {
		var opts []func(*config.LoadOptions) error
		if a.Region != "" {
			opts = append(opts, config.WithRegion(a.Region))
		}
		if a.AccessKeyID != "" {
			opts = append(opts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(a.AccessKeyID, a.SecretAccessKey, "")))
		}
		cfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			a.clientInitErr = fmt.Errorf("failed to load AWS config: %w", err)
			return
		}
		a.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			if a.Endpoint != "" {
				o.BaseEndpoint = aws.String(a.Endpoint)
				o.UsePathStyle = true
			}
		})
	})
	return a.client, a.clientInitErr
}

// Put uploads data under key.
func (a *S3Sink) Put(ctx context.Context, key string, data []byte) error {
	client, err := a.getClient(ctx)
	if err != nil {
		return err
	}
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.BucketName),
		Key:         aws.String(Key(a.Prefix, key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		logrus.WithError(err).WithField("key", key).Debug("error putting object")
		return err
	}
	return nil
}

// Get downloads the object stored under key.
func (a *S3Sink) Get(ctx context.Context, key string) ([]byte, error) {
	client, err := a.getClient(ctx)
	if err != nil {
		return nil, err
	}
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.BucketName),
		Key:    aws.String(Key(a.Prefix, key)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer result.Body.Close()
	return io.ReadAll(result.Body)
}

// GetType returns the type of the sink (in this case, "s3").
func (a *S3Sink) GetType() string {
	return "s3"
}
