package mirror

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Get when the mirror holds no copy of a key.
var ErrNotFound = errors.New("mirror: object not found")

// Sink keeps an off-box copy of written config files.
type Sink interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	GetType() string
}

// Config selects and configures a Sink.
type Config struct {
	Type            string `yaml:"type"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	URL             string `yaml:"url"`
	APIKey          string `yaml:"apiKey"`
	Path            string `yaml:"path"`
}

// Enabled reports whether a mirror type is configured.
func (c Config) Enabled() bool {
	t := strings.ToLower(c.Type)
	return t != "" && t != "none"
}

// New builds the Sink described by cfg. It returns a nil Sink when mirroring
// is disabled.
func New(cfg Config) (Sink, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "none":
		return nil, nil
	case "s3":
		if cfg.Bucket == "" {
			return nil, errors.New("mirror: bucket is required for s3")
		}
		return &S3Sink{
			BucketName:      cfg.Bucket,
			Prefix:          cfg.Prefix,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
		}, nil
	case "gcs":
		if cfg.Bucket == "" {
			return nil, errors.New("mirror: bucket is required for gcs")
		}
		return &GCSSink{BucketName: cfg.Bucket, Prefix: cfg.Prefix}, nil
	case "http":
		if cfg.URL == "" {
			return nil, errors.New("mirror: url is required for http")
		}
		u, err := url.Parse(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("mirror: parsing url: %w", err)
		}
		return &WebSink{URL: u, APIKey: cfg.APIKey}, nil
	case "fs":
		if cfg.Path == "" {
			return nil, errors.New("mirror: path is required for fs")
		}
		return &FileSink{Dir: cfg.Path}, nil
	default:
		return nil, fmt.Errorf("mirror: unknown type %q", cfg.Type)
	}
}

// Key turns a config path relative to the install root into an object key
// under prefix.
func Key(prefix, configPath string) string {
	return strings.TrimPrefix(path.Join(prefix, filepath.ToSlash(configPath)), "/")
}
