package e2e

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"specd/internal/httpapi"
	"specd/internal/manager"
	"specd/internal/store"
	"specd/pkg/types"
)

// newServer starts the full HTTP stack over a temp upload directory.
func newServer(t *testing.T, cfg manager.ManagerConfig) (*httptest.Server, *manager.Manager, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	cfg.Store = st
	if cfg.Converter == nil {
		cfg.Converter = copyConverter{}
	}
	mgr := manager.NewWithConfig(cfg)
	srv := httptest.NewServer(httpapi.NewMux(mgr))
	t.Cleanup(srv.Close)
	return srv, mgr, st
}

// copyConverter stands in for tensorflowjs_converter by copying src to dst.
type copyConverter struct{}

func (copyConverter) Convert(_ context.Context, src, dst string) error {
	b, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, b, 0o644)
}

// blockingAdapter holds every prediction until release is closed.
type blockingAdapter struct {
	started chan struct{}
	release chan struct{}
}

func (a *blockingAdapter) Start(context.Context, types.Model, manager.ModelFiles) (manager.InferSession, error) {
	return blockingSession{a}, nil
}

type blockingSession struct{ a *blockingAdapter }

func (s blockingSession) Predict(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
	s.a.started <- struct{}{}
	select {
	case <-s.a.release:
		return json.RawMessage(`[[1]]`), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (blockingSession) Close() error { return nil }

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	return do(t, req)
}

func httpPostJSON(t *testing.T, url string, payload string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewBufferString(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return do(t, req)
}

type filePart struct {
	field, name string
	body        []byte
}

func httpPostMultipart(t *testing.T, url string, fields map[string]string, files ...filePart) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, f := range files {
		w, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := w.Write(f.body); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, &buf)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return do(t, req)
}

func mustRequest(t *testing.T, method, url, contentType, body string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, url, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	return req
}

func do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func decode(t *testing.T, body []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
}

func float32Bytes(vals ...float32) []byte {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// denseModelJSON is a Dense(2->1, linear) TF.js model reading weights.bin.
const denseModelJSON = `{
  "format": "layers-model",
  "modelTopology": {"class_name": "Sequential", "config": {"name": "tiny", "layers": [
    {"class_name": "Dense", "config": {"name": "d", "units": 1, "activation": "linear", "batch_input_shape": [null, 2]}}
  ]}},
  "weightsManifest": [{"paths": ["weights.bin"], "weights": [
    {"name": "d/kernel", "shape": [2, 1], "dtype": "float32"},
    {"name": "d/bias", "shape": [1], "dtype": "float32"}
  ]}]
}`
