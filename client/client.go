package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/sardine-ai/go-installer-config/configs"
	"github.com/sardine-ai/go-installer-config/model"
	"github.com/sirupsen/logrus"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// APIError is a non-2xx answer from the installer API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("installer api: %d %s", e.StatusCode, e.Message)
}

// Is lets callers test API errors against the config sentinels.
func (e *APIError) Is(target error) bool {
	switch e.StatusCode {
	case http.StatusNotFound:
		return target == configs.ErrConfigNotFound
	case http.StatusUnprocessableEntity:
		return target == configs.ErrConfigParse
	}
	return false
}

// Client talks to an installer config server.
type Client struct {
	BaseURL    *url.URL
	HTTPClient *http.Client
}

// NewClient creates a Client for the server at baseURL, for example
// "http://localhost:8000".
func NewClient(baseURL string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", baseURL)
	}
	return &Client{
		BaseURL:    u,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}, nil
}

// ReadConfig loads the config file named by target.
func (c *Client) ReadConfig(ctx context.Context, target model.Target) (model.Document, error) {
	var doc model.Document
	if err := c.do(ctx, http.MethodGet, "/config", targetQuery(target), nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// WriteConfig replaces the config file named by target with doc.
func (c *Client) WriteConfig(ctx context.Context, target model.Target, doc model.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/config", targetQuery(target), body, nil)
}

// DeleteConfig removes the config file named by target.
func (c *Client) DeleteConfig(ctx context.Context, target model.Target) error {
	return c.do(ctx, http.MethodDelete, "/config", targetQuery(target), nil, nil)
}

// Files lists the config files allowed for category.
func (c *Client) Files(ctx context.Context, category model.Category) ([]string, error) {
	var files []string
	q := url.Values{"type": {string(category)}}
	if err := c.do(ctx, http.MethodGet, "/config/files", q, nil, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// ChainNames lists the chains of family that have saved configs.
func (c *Client) ChainNames(ctx context.Context, family model.ChainFamily) ([]string, error) {
	var names []string
	q := url.Values{"base": {string(family)}}
	if err := c.do(ctx, http.MethodGet, "/config/chains", q, nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func targetQuery(t model.Target) url.Values {
	q := url.Values{
		"type": {string(t.Category)},
		"file": {t.File},
	}
	if t.ChainName != "" {
		q.Set("chain", t.ChainName)
	}
	if t.ChainFamily != "" {
		q.Set("base", string(t.ChainFamily))
	}
	return q
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, out interface{}) error {
	u := *c.BaseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		logrus.WithError(err).WithField("url", u.String()).Debug("error calling installer api")
		return err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logrus.WithError(err).Error("error closing response body")
		}
	}(resp.Body)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
