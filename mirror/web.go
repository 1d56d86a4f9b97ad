package mirror

import (
	"bytes"
	"context"
	"fmt"
	"github.com/sirupsen/logrus"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// WebSink mirrors config files to an HTTP endpoint: PUT <URL>/<key> to store
// and GET <URL>/<key> to fetch.
type WebSink struct {
	URL    *url.URL     // Base URL of the remote endpoint
	APIKey string       // Optional API key for X-API-Key header authentication
	Client *http.Client // Defaults to http.DefaultClient
}

func (w *WebSink) httpClient() *http.Client {
	if w.Client != nil {
		return w.Client
	}
	return http.DefaultClient
}

func (w *WebSink) objectURL(key string) string {
	u := *w.URL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + Key("", key)
	return u.String()
}

func (w *WebSink) do(ctx context.Context, method, key string, body io.Reader) (*http.Response, error) {
	request, err := http.NewRequestWithContext(ctx, method, w.objectURL(key), body)
	if err != nil {
		logrus.Debug("error creating request")
		return nil, err
	}
	// Set X-API-Key header if API key is configured
	if w.APIKey != "" {
		request.Header.Set("X-API-Key", w.APIKey)
	}
	return w.httpClient().Do(request)
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		logrus.WithError(err).Debug("error closing response body")
	}
}

// Put uploads data under key.
func (w *WebSink) Put(ctx context.Context, key string, data []byte) error {
	resp, err := w.do(ctx, http.MethodPut, key, bytes.NewReader(data))
	if err != nil {
		logrus.Debug("error doing request")
		return err
	}
	defer closeBody(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("mirror: PUT %s: unexpected status %s", key, resp.Status)
	}
	return nil
}

// Get downloads the document stored under key.
func (w *WebSink) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := w.do(ctx, http.MethodGet, key, nil)
	if err != nil {
		logrus.Debug("error doing request")
		return nil, err
	}
	defer closeBody(resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("mirror: GET %s: unexpected status %s", key, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// GetType returns the type of the sink (in this case, "http").
func (w *WebSink) GetType() string {
	return "http"
}
