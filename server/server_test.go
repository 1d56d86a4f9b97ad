package server

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/sardine-ai/go-installer-config/configs"
	"github.com/sardine-ai/go-installer-config/history"
	"github.com/sardine-ai/go-installer-config/mirror"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

const systemsQuery = "/config?type=other&file=user_config_systems.ini"

var systemsPath = filepath.Join("config", "others", configs.UserConfigSystems)

// failingSink is a mirror that is always down.
type failingSink struct {
	mu   sync.Mutex
	puts int
}

func (f *failingSink) Put(context.Context, string, []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	return errors.New("mirror unavailable")
}

func (f *failingSink) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("mirror unavailable")
}

func (f *failingSink) GetType() string {
	return "failing"
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(configs.NewStore(memfs.New()))
}

func do(t *testing.T, handler http.Handler, method, target, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	data, _ := io.ReadAll(resp.Body)
	var result map[string]interface{}
	if len(data) > 0 && data[0] == '{' {
		if err := json.Unmarshal(data, &result); err != nil {
			t.Fatalf("Failed to parse JSON response %q: %v", data, err)
		}
	}
	return resp, result
}

// TestServerHealthEndpoint tests the /health endpoint
func TestServerHealthEndpoint(t *testing.T) {
	handler := newTestServer(t).CreateHandlers()

	resp, result := do(t, handler, "GET", "/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if result["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got '%v'", result["status"])
	}
}

// TestServerWriteAndReadConfig tests a save followed by a load of the same file
func TestServerWriteAndReadConfig(t *testing.T) {
	server := newTestServer(t)
	handler := server.CreateHandlers()

	body := `{"system_1": {"id": "system_1", "name": "validator", "monitor_system": true, "disabled": false}}`
	resp, result := do(t, handler, "POST", systemsQuery, body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %v", resp.StatusCode, result)
	}
	if !strings.Contains(result["message"].(string), "config/others/user_config_systems.ini") {
		t.Errorf("Unexpected message %v", result["message"])
	}
	if !server.Store.Exists(systemsPath) {
		t.Fatal("Expected config file to be written")
	}

	resp, result = do(t, handler, "GET", systemsQuery, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	section, ok := result["system_1"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected section system_1, got %v", result)
	}
	if section["monitor_system"] != "true" || section["name"] != "validator" {
		t.Errorf("Unexpected section %v", section)
	}
}

// TestServerChainConfig tests that chain configs land under their chain directory
func TestServerChainConfig(t *testing.T) {
	server := newTestServer(t)
	handler := server.CreateHandlers()

	target := "/config?type=chain&file=user_config_nodes.ini&chain=cosmoshub&base=cosmos"
	resp, _ := do(t, handler, "PUT", target, `{"node_1": {"name": "cosmos_sentry_1"}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	path := filepath.Join("config", "chains", "cosmos", "cosmoshub", configs.UserConfigNodes)
	if !server.Store.Exists(path) {
		t.Errorf("Expected %s to exist", path)
	}

	req := httptest.NewRequest("GET", "/config/chains?base=cosmos", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	var names []string
	if err := json.Unmarshal(w.Body.Bytes(), &names); err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "cosmoshub" {
		t.Errorf("Expected [cosmoshub], got %v", names)
	}
}

// TestServerErrorStatus tests the mapping of config errors to status codes
func TestServerErrorStatus(t *testing.T) {
	server := newTestServer(t)
	fs := server.Store.Filesystem()
	if err := util.WriteFile(fs, systemsPath, []byte("[system_1\nname = x\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	handler := server.CreateHandlers()

	testCases := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"unknown type", "GET", "/config?type=general&file=user_config_systems.ini", "", http.StatusBadRequest},
		{"file not allowed", "GET", "/config?type=channel&file=user_config_systems.ini", "", http.StatusBadRequest},
		{"traversal", "GET", "/config?type=other&file=../../etc/passwd", "", http.StatusBadRequest},
		{"bad chain name", "GET", "/config?type=chain&file=user_config_nodes.ini&chain=..&base=cosmos", "", http.StatusBadRequest},
		{"bad base chain", "GET", "/config?type=chain&file=user_config_nodes.ini&chain=a&base=ethereum", "", http.StatusBadRequest},
		{"not found", "GET", "/config?type=channel&file=user_config_email.ini", "", http.StatusNotFound},
		{"malformed", "GET", systemsQuery, "", http.StatusUnprocessableEntity},
		{"bad body", "POST", systemsQuery, `["not", "a", "document"]`, http.StatusBadRequest},
		{"nested value", "POST", systemsQuery, `{"s": {"k": {"a": 1}}}`, http.StatusBadRequest},
		{"delete missing", "DELETE", "/config?type=channel&file=user_config_email.ini", "", http.StatusNotFound},
		{"method", "PATCH", systemsQuery, "", http.StatusMethodNotAllowed},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, result := do(t, handler, tc.method, tc.target, tc.body)
			if resp.StatusCode != tc.status {
				t.Errorf("Expected status %d, got %d", tc.status, resp.StatusCode)
			}
			if _, ok := result["error"]; !ok {
				t.Errorf("Expected error in body, got %v", result)
			}
		})
	}
}

// TestServerDeleteConfig tests removing a config file
func TestServerDeleteConfig(t *testing.T) {
	server := newTestServer(t)
	handler := server.CreateHandlers()

	do(t, handler, "POST", systemsQuery, `{"system_1": {"name": "a"}}`)
	resp, _ := do(t, handler, "DELETE", systemsQuery, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if server.Store.Exists(systemsPath) {
		t.Error("Expected config file to be removed")
	}
}

// TestServerFilesEndpoint tests listing the allowed files of a config type
func TestServerFilesEndpoint(t *testing.T) {
	handler := newTestServer(t).CreateHandlers()

	req := httptest.NewRequest("GET", "/config/files?type=other", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var files []string
	if err := json.Unmarshal(w.Body.Bytes(), &files); err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0] != configs.UserConfigSystems || files[1] != configs.UserConfigAlerts {
		t.Errorf("Unexpected files %v", files)
	}

	resp, _ := do(t, handler, "GET", "/config/files?type=bogus", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}
}

// TestServerHistory tests that saves are committed and listed
func TestServerHistory(t *testing.T) {
	fs := memfs.New()
	r, err := git.Init(memory.NewStorage(), fs)
	if err != nil {
		t.Fatal(err)
	}
	server := NewServer(configs.NewStore(fs))
	server.History = history.New(r)
	handler := server.CreateHandlers()

	do(t, handler, "POST", systemsQuery, `{"system_1": {"name": "a"}}`)
	do(t, handler, "POST", systemsQuery, `{"system_1": {"name": "b"}}`)
	// Unchanged content adds no revision.
	do(t, handler, "POST", systemsQuery, `{"system_1": {"name": "b"}}`)

	req := httptest.NewRequest("GET", "/config/history?type=other&file=user_config_systems.ini", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var revisions []history.Revision
	if err := json.Unmarshal(w.Body.Bytes(), &revisions); err != nil {
		t.Fatal(err)
	}
	if len(revisions) != 2 {
		t.Fatalf("Expected 2 revisions, got %d", len(revisions))
	}

	resp, _ := do(t, handler, "GET", "/config/history?type=other&file=user_config_systems.ini&limit=x", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}
}

// TestServerHistoryDisabled tests /config/history without a recorder
func TestServerHistoryDisabled(t *testing.T) {
	handler := newTestServer(t).CreateHandlers()

	resp, _ := do(t, handler, "GET", "/config/history?type=other&file=user_config_systems.ini", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}
}

// TestServerMirrorAndRestore tests that saves are mirrored and can be restored
func TestServerMirrorAndRestore(t *testing.T) {
	backup := t.TempDir()
	server := newTestServer(t)
	server.Mirror = &mirror.FileSink{Dir: backup}
	handler := server.CreateHandlers()

	do(t, handler, "POST", systemsQuery, `{"system_1": {"name": "a"}}`)
	data, err := os.ReadFile(filepath.Join(backup, systemsPath))
	if err != nil {
		t.Fatalf("Expected mirrored copy: %v", err)
	}
	if !strings.Contains(string(data), "[system_1]") {
		t.Errorf("Unexpected mirrored content %q", data)
	}

	if err := server.Store.Delete(systemsPath); err != nil {
		t.Fatal(err)
	}
	resp, _ := do(t, handler, "POST", "/config/restore?type=other&file=user_config_systems.ini", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	doc, err := server.Store.Read(systemsPath)
	if err != nil {
		t.Fatal(err)
	}
	if doc["system_1"]["name"] != "a" {
		t.Errorf("Unexpected restored document %v", doc)
	}

	resp, _ = do(t, handler, "POST", "/config/restore?type=channel&file=user_config_email.ini", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404 for missing copy, got %d", resp.StatusCode)
	}
	resp, _ = do(t, handler, "GET", "/config/restore?type=other&file=user_config_systems.ini", "")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", resp.StatusCode)
	}
}

// TestServerMirrorFailureIgnored tests that a failing mirror does not fail saves
func TestServerMirrorFailureIgnored(t *testing.T) {
	sink := &failingSink{}
	server := newTestServer(t)
	server.Mirror = sink
	handler := server.CreateHandlers()

	resp, _ := do(t, handler, "POST", systemsQuery, `{"system_1": {"name": "a"}}`)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if sink.puts != 1 {
		t.Errorf("Expected one mirror attempt, got %d", sink.puts)
	}
}

// TestServerConcurrentWrites tests that concurrent saves leave a readable file
func TestServerConcurrentWrites(t *testing.T) {
	store, err := configs.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	server := NewServer(store)
	handler := server.CreateHandlers()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest("POST", systemsQuery, strings.NewReader(`{"system_1": {"name": "a"}}`))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != http.StatusOK {
				t.Errorf("Expected status 200, got %d", w.Code)
			}
		}()
	}
	wg.Wait()

	if _, err := server.Store.Read(systemsPath); err != nil {
		t.Errorf("Expected readable config, got %v", err)
	}
}

// TestServerETag tests that responses carry an ETag and honour If-None-Match
func TestServerETag(t *testing.T) {
	server := newTestServer(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(listener)
	}()
	defer func() {
		if err := server.Shutdown(); err != nil {
			t.Errorf("Expected no error on shutdown, got: %v", err)
		}
		if err := <-done; err != nil {
			t.Errorf("Expected nil from Serve after shutdown, got: %v", err)
		}
	}()

	url := "http://" + listener.Addr().String() + "/health"
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	tag := resp.Header.Get("ETag")
	if tag == "" {
		t.Fatal("Expected ETag header")
	}

	req, _ := http.NewRequest("GET", url, nil)
	req.Header.Set("If-None-Match", tag)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotModified {
		t.Errorf("Expected status 304, got %d", resp.StatusCode)
	}
}

// TestServerStartReturnsError tests that Start returns error properly
func TestServerStartReturnsError(t *testing.T) {
	server := newTestServer(t)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start("invalid-address:99999999")
	}()

	select {
	case err := <-errChan:
		if err == nil {
			t.Error("Expected error for invalid address")
		}
	case <-time.After(2 * time.Second):
		t.Error("Expected Start to fail")
	}
}

// TestServerShutdownBeforeStart tests that Shutdown is a no-op on an idle server
func TestServerShutdownBeforeStart(t *testing.T) {
	if err := newTestServer(t).Shutdown(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}
