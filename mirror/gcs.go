package mirror

import (
	"cloud.google.com/go/storage"
	"context"
	"errors"
	"github.com/sirupsen/logrus"
	"io"
	"sync"
)

// GCSSink mirrors config files into a Google Cloud Storage bucket.
type GCSSink struct {
	BucketName    string          // Name of the GCS bucket
	Prefix        string          // Object name prefix inside the bucket
	Client        *storage.Client // Pre-configured client; built lazily when nil
	clientOnce    sync.Once
	client        *storage.Client
	clientInitErr error
}

func (g *GCSSink) getClient(ctx context.Context) (*storage.Client, error) {
	if g.Client != nil {
		return g.Client, nil
	}
	g.clientOnce.Do(func() {
		g.client, g.clientInitErr = storage.NewClient(ctx)
	})
	return g.client, g.clientInitErr
}

// Put uploads data under key.
func (g *GCSSink) Put(ctx context.Context, key string, data []byte) error {
	client, err := g.getClient(ctx)
	if err != nil {
		return err
	}
	w := client.Bucket(g.BucketName).Object(Key(g.Prefix, key)).NewWriter(ctx)
	w.ContentType = "text/plain"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		logrus.WithError(err).WithField("key", key).Debug("error writing object")
		return err
	}
	// Close flushes the upload; its error is the upload result.
	return w.Close()
}

// Get downloads the object stored under key.
func (g *GCSSink) Get(ctx context.Context, key string) ([]byte, error) {
	client, err := g.getClient(ctx)
	if err != nil {
		return nil, err
	}
	reader, err := client.Bucket(g.BucketName).Object(Key(g.Prefix, key)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

// GetType returns the type of the sink (in this case, "gcs").
func (g *GCSSink) GetType() string {
	return "gcs"
}
