package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"specd/internal/manager"
	"specd/pkg/types"
)

type mockService struct {
	ready  bool
	status types.StatusResponse

	specErr  error
	specArgs []string

	modelResp types.UploadModelResponse
	modelErr  error
	upload    manager.ModelUpload
	bodies    map[string]string

	listing types.FileListing
	listErr error

	filePath string
	fileErr  error

	models    []types.Model
	lookupErr error

	predictOut  json.RawMessage
	predictErr  error
	predictData json.RawMessage
	predictArgs []string
}

func (m *mockService) SaveSpectrogram(ctx context.Context, project, labels, spectrogram string) (string, error) {
	m.specArgs = []string{project, labels, spectrogram}
	if m.specErr != nil {
		return "", m.specErr
	}
	return "bb6cb5c68df4652941caf652a366f2d8", nil
}

func (m *mockService) SaveModel(ctx context.Context, up manager.ModelUpload) (types.UploadModelResponse, error) {
	m.upload = up
	m.bodies = map[string]string{}
	if up.File != nil {
		b, _ := io.ReadAll(up.File.Body)
		m.bodies[up.File.Name] = string(b)
	}
	for _, w := range up.Weights {
		b, _ := io.ReadAll(w.Body)
		m.bodies[w.Name] = string(b)
	}
	return m.modelResp, m.modelErr
}

func (m *mockService) ListFiles(project string) (types.FileListing, error) {
	return m.listing, m.listErr
}

func (m *mockService) OpenFile(project, folder, name string) (*os.File, fs.FileInfo, error) {
	if m.fileErr != nil {
		return nil, nil, m.fileErr
	}
	f, err := os.Open(m.filePath)
	if err != nil {
		return nil, nil, err
	}
	fi, err := f.Stat()
	return f, fi, err
}

func (m *mockService) ListModels(project string) ([]types.Model, error) { return m.models, nil }

func (m *mockService) Model(project, name string) (types.Model, error) {
	if m.lookupErr != nil {
		return types.Model{}, m.lookupErr
	}
	return types.Model{ID: name, Project: project}, nil
}

func (m *mockService) Predict(ctx context.Context, project, model string, data json.RawMessage) (json.RawMessage, error) {
	m.predictArgs = []string{project, model}
	m.predictData = data
	return m.predictOut, m.predictErr
}

func (m *mockService) Status() types.StatusResponse { return m.status }
func (m *mockService) Ready() bool                  { return m.ready }

type mockHTTPError struct {
	msg  string
	code int
}

func (e mockHTTPError) Error() string   { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.ErrorResponse {
	t.Helper()
	var e types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return e
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][][2]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for field, list := range files {
		for _, f := range list {
			fw, err := mw.CreateFormFile(field, f[0])
			if err != nil {
				t.Fatal(err)
			}
			_, _ = fw.Write([]byte(f[1]))
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUploadSpectrogram_Multipart(t *testing.T) {
	svc := &mockService{}
	r := NewMux(svc)
	body, ct := multipartBody(t, map[string]string{"project_id": "p1", "labels": `["a"]`, "spectrogram": `{"a":1}`}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/upload/spectrogram", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp types.UploadSpectrogramResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Message != "File saved" || resp.MD5 != "bb6cb5c68df4652941caf652a366f2d8" {
		t.Fatalf("unexpected body %+v", resp)
	}
	if strings.Join(svc.specArgs, "|") != `p1|["a"]|{"a":1}` {
		t.Fatalf("service got %v", svc.specArgs)
	}
}

func TestUploadSpectrogram_URLEncodedWithoutPrefix(t *testing.T) {
	svc := &mockService{}
	r := NewMux(svc)
	form := url.Values{"project_id": {"p1"}, "labels": {"[]"}, "spectrogram": {"[1]"}}
	req := httptest.NewRequest(http.MethodPost, "/upload/spectrogram", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if svc.specArgs[2] != "[1]" {
		t.Fatalf("service got %v", svc.specArgs)
	}
}

func TestUploadSpectrogram_MissingFieldMaps400(t *testing.T) {
	svc := &mockService{specErr: manager.ErrMissingField("Missing project_id, labels, or spectrogram")}
	r := NewMux(svc)
	req := httptest.NewRequest(http.MethodPost, "/api/upload/spectrogram", strings.NewReader("project_id=p1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
	if e := decodeError(t, w); e.Error != "Missing project_id, labels, or spectrogram" || e.Code != 400 {
		t.Fatalf("unexpected error body %+v", e)
	}
}

func TestUploadSpectrogram_BodyTooLarge(t *testing.T) {
	SetMaxUploadBytes(16)
	defer SetMaxUploadBytes(0)
	r := NewMux(&mockService{})
	req := httptest.NewRequest(http.MethodPost, "/api/upload/spectrogram", strings.NewReader("project_id=p1&labels=[]&spectrogram="+strings.Repeat("1", 64)))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestUploadModel_FileAndWeights(t *testing.T) {
	svc := &mockService{modelResp: types.UploadModelResponse{Message: "TensorFlow.js model converted and saved", Path: "uploads/p1/aiModels/model.h5"}}
	r := NewMux(svc)
	body, ct := multipartBody(t,
		map[string]string{"project_id": "p1"},
		map[string][][2]string{
			"file":    {{"model.json", `{"modelTopology":{}}`}},
			"weights": {{"group1-shard1of2.bin", "AAAA"}, {"group1-shard2of2.bin", "BBBB"}},
		})
	req := httptest.NewRequest(http.MethodPost, "/api/upload/aiModel", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp types.UploadModelResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp != svc.modelResp {
		t.Fatalf("unexpected body %+v", resp)
	}
	if svc.upload.Project != "p1" || svc.upload.File == nil || svc.upload.File.Name != "model.json" || len(svc.upload.Weights) != 2 {
		t.Fatalf("service got %+v", svc.upload)
	}
	if svc.bodies["group1-shard2of2.bin"] != "BBBB" || svc.bodies["model.json"] != `{"modelTopology":{}}` {
		t.Fatalf("unexpected bodies %v", svc.bodies)
	}
}

func TestUploadModel_NotMultipartHasNoFile(t *testing.T) {
	svc := &mockService{modelErr: manager.ErrMissingField("Missing project_id or file")}
	r := NewMux(svc)
	req := httptest.NewRequest(http.MethodPost, "/upload/aiModel", strings.NewReader("project_id=p1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
	if svc.upload.File != nil || svc.upload.Project != "p1" {
		t.Fatalf("service got %+v", svc.upload)
	}
	if e := decodeError(t, w); e.Error != "Missing project_id or file" {
		t.Fatalf("unexpected error %+v", e)
	}
}

func TestUploadModel_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
		msg  string
	}{
		{manager.ErrInvalidInput("File type not allowed"), http.StatusBadRequest, "File type not allowed"},
		{manager.ErrDependencyUnavailable("model converter unavailable"), http.StatusServiceUnavailable, "model converter unavailable"},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError, io.ErrUnexpectedEOF.Error()},
		{mockHTTPError{msg: "teapot", code: http.StatusTeapot}, http.StatusTeapot, "teapot"},
	}
	for _, tc := range cases {
		svc := &mockService{modelErr: tc.err}
		body, ct := multipartBody(t, map[string]string{"project_id": "p1"}, map[string][][2]string{"file": {{"x.txt", "x"}}})
		req := httptest.NewRequest(http.MethodPost, "/api/upload/aiModel", body)
		req.Header.Set("Content-Type", ct)
		w := httptest.NewRecorder()
		NewMux(svc).ServeHTTP(w, req)
		if w.Code != tc.code {
			t.Fatalf("%v: status=%d want %d", tc.err, w.Code, tc.code)
		}
		if e := decodeError(t, w); e.Error != tc.msg || e.Code != tc.code {
			t.Fatalf("%v: unexpected body %+v", tc.err, e)
		}
	}
}

func TestListFiles(t *testing.T) {
	svc := &mockService{listing: types.FileListing{"jsondata": {"a.json", "b.json"}}}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/files/p1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var got types.FileListing
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(got["jsondata"]) != 2 {
		t.Fatalf("unexpected listing %v", got)
	}
}

func TestListFiles_EmptyIsObject(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/files/nobody", nil))
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "{}" {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
}

func TestViewFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "rec.json")
	if err := os.WriteFile(p, []byte(`{"md5":"x"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	r := NewMux(&mockService{filePath: p})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/files/view/p1/jsondata/rec.json", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if w.Body.String() != `{"md5":"x"}` {
		t.Fatalf("body=%q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
}

func TestViewFile_NotFound(t *testing.T) {
	svc := &mockService{}
	svc.fileErr = notFoundFromManager(t)
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/files/view/p1/secrets/x", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
	if e := decodeError(t, w); e.Error != "File not found" {
		t.Fatalf("unexpected error %+v", e)
	}
}

// notFoundFromManager obtains a real not-found error from a manager over an
// empty upload directory.
func notFoundFromManager(t *testing.T) error {
	t.Helper()
	mgr := newManager(t)
	_, _, err := mgr.OpenFile("p1", "jsondata", "missing.json")
	if !manager.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	return err
}

func TestListModels(t *testing.T) {
	r := NewMux(&mockService{models: []types.Model{{ID: "a.json"}, {ID: "a.h5"}}})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/models/p1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.ModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(body.Models) != 2 {
		t.Fatalf("models len=%d", len(body.Models))
	}
}

func TestPredict(t *testing.T) {
	svc := &mockService{predictOut: json.RawMessage(`[[0.1,0.9]]`)}
	r := NewMux(svc)
	req := httptest.NewRequest(http.MethodPost, "/api/models/p1/model.json", strings.NewReader(`{"data":[[1,2]]}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if string(resp["predictions"]) != `[[0.1,0.9]]` {
		t.Fatalf("predictions=%s", resp["predictions"])
	}
	if svc.predictArgs[0] != "p1" || svc.predictArgs[1] != "model.json" || string(svc.predictData) != `[[1,2]]` {
		t.Fatalf("service got %v %s", svc.predictArgs, svc.predictData)
	}
}

func TestPredict_EmptyBodyReachesService(t *testing.T) {
	svc := &mockService{predictErr: manager.ErrMissingField("Missing data")}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/models/p1/m.json", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
	if svc.predictArgs == nil || svc.predictData != nil {
		t.Fatalf("service got %v %s", svc.predictArgs, svc.predictData)
	}
	if e := decodeError(t, w); e.Error != "Missing data" {
		t.Fatalf("unexpected error %+v", e)
	}
}

func TestPredict_InvalidJSON(t *testing.T) {
	svc := &mockService{}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/models/p1/m.json", strings.NewReader(`{"data":`)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
	if svc.predictArgs != nil {
		t.Fatal("service should not be called for an invalid body")
	}
}

func TestPredict_InvalidJSONUnknownModel(t *testing.T) {
	svc := &mockService{lookupErr: manager.ErrModelNotFound("nope.json")}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/models/p1/nope.json", strings.NewReader(`{"data":`)))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if e := decodeError(t, w); e.Error != "Model not found" {
		t.Fatalf("unexpected error %+v", e)
	}
}

func TestPredict_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
		msg  string
	}{
		{manager.ErrModelNotFound("m.json"), http.StatusNotFound, "Model not found"},
		{manager.ErrMissingField("Missing data"), http.StatusBadRequest, "Missing data"},
		{manager.ErrDependencyUnavailable("keras predictor not configured"), http.StatusServiceUnavailable, "keras predictor not configured"},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, context.DeadlineExceeded.Error()},
	}
	for _, tc := range cases {
		r := NewMux(&mockService{predictErr: tc.err})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/models/p1/m.json", strings.NewReader(`{"data":[1]}`)))
		if w.Code != tc.code {
			t.Fatalf("%v: status=%d want %d", tc.err, w.Code, tc.code)
		}
		if e := decodeError(t, w); e.Error != tc.msg {
			t.Fatalf("%v: unexpected body %+v", tc.err, e)
		}
	}
}

func TestStatusHandler(t *testing.T) {
	svc := &mockService{status: types.StatusResponse{UploadDir: "uploads", SpectrogramsTotal: 3}}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.UploadDir != "uploads" || body.SpectrogramsTotal != 3 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestHealthAndReady(t *testing.T) {
	r := NewMux(&mockService{ready: true})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("healthz status=%d body=%q", w.Code, w.Body.String())
	}
	if nosniff := w.Header().Get("X-Content-Type-Options"); nosniff != "nosniff" {
		t.Fatalf("missing nosniff header: %q", nosniff)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("readyz status=%d", w.Code)
	}
}

func TestReadyz_NotReady(t *testing.T) {
	r := NewMux(&mockService{ready: false})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestCORS_OptIn(t *testing.T) {
	SetCORSOptions(true, []string{"http://localhost:5173"}, []string{"GET", "POST"}, []string{"Content-Type"})
	defer SetCORSOptions(false, nil, nil, nil)
	r := NewMux(&mockService{})
	req := httptest.NewRequest(http.MethodOptions, "/api/files/p1", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("allow-origin=%q status=%d", got, w.Code)
	}
}
