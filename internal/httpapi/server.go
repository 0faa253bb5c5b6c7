package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"specd/internal/manager"
	"specd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	SaveSpectrogram(ctx context.Context, project, labels, spectrogram string) (string, error)
	SaveModel(ctx context.Context, up manager.ModelUpload) (types.UploadModelResponse, error)
	ListFiles(project string) (types.FileListing, error)
	OpenFile(project, folder, name string) (*os.File, fs.FileInfo, error)
	ListModels(project string) ([]types.Model, error)
	Model(project, name string) (types.Model, error)
	Predict(ctx context.Context, project, model string, data json.RawMessage) (json.RawMessage, error)
	Status() types.StatusResponse
	Ready() bool
}

type api struct{ svc Service }

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog)
	r.Use(MetricsMiddleware)
	r.Use(middleware.Recoverer)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	a := &api{svc: svc}
	r.Route("/api", a.routes)
	// The same routes without the prefix, as served by earlier clients.
	a.routes(r)

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("upload directory not writable"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

func (a *api) routes(r chi.Router) {
	r.Post("/upload/spectrogram", a.uploadSpectrogram)
	r.Post("/upload/aiModel", a.uploadModel)
	r.Get("/files/{project_id}", a.listFiles)
	r.Get("/files/view/{project_id}/{folder}/{filename}", a.viewFile)
	r.Get("/models/{project_id}", a.listModels)
	r.Post("/models/{project_id}/{model_name}", a.predict)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logError(err, "encode response")
	}
}

func logError(err error, msg string) {
	if zlog != nil {
		zlog.Error().Err(err).Msg(msg)
	}
}

// parseForm limits the body and parses multipart or urlencoded forms.
// ParseMultipartForm swallows ParseForm errors, so only multipart bodies go
// through it.
func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil && mt == "multipart/form-data" {
		return r.ParseMultipartForm(multipartMemory)
	}
	return r.ParseForm()
}

func writeFormError(w http.ResponseWriter, err error) int {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return http.StatusRequestEntityTooLarge
	}
	writeJSONError(w, http.StatusBadRequest, "invalid form body")
	return http.StatusBadRequest
}

// uploadSpectrogram godoc
// @Summary      Upload a spectrogram
// @Description  Stores labels and spectrogram JSON under the MD5 of the raw spectrogram text.
// @Tags         upload
// @Accept       multipart/form-data
// @Produce      json
// @Param        project_id   formData  string  true  "Project id"
// @Param        labels       formData  string  true  "Labels as JSON text"
// @Param        spectrogram  formData  string  true  "Spectrogram as JSON text"
// @Success      200  {object}  types.UploadSpectrogramResponse
// @Failure      400  {object}  types.ErrorResponse
// @Router       /api/upload/spectrogram [post]
func (a *api) uploadSpectrogram(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		observeUpload("spectrogram", writeFormError(w, err), 0)
		return
	}
	spectrogram := r.PostFormValue("spectrogram")
	hash, err := a.svc.SaveSpectrogram(r.Context(), r.PostFormValue("project_id"), r.PostFormValue("labels"), spectrogram)
	if err != nil {
		observeUpload("spectrogram", writeServiceError(w, err, "upload"), 0)
		return
	}
	observeUpload("spectrogram", http.StatusOK, int64(len(spectrogram)))
	writeJSON(w, http.StatusOK, types.UploadSpectrogramResponse{Message: manager.MsgFileSaved, MD5: hash})
}

// uploadModel godoc
// @Summary      Upload an AI model
// @Description  Stores a .json (TF.js) or .h5 (Keras) model; TF.js models are converted to .h5.
// @Tags         upload
// @Accept       multipart/form-data
// @Produce      json
// @Param        project_id  formData  string  true   "Project id"
// @Param        file        formData  file    true   "Model file"
// @Param        weights     formData  file    false  "TF.js weight shards (.bin)"
// @Success      200  {object}  types.UploadModelResponse
// @Failure      400  {object}  types.ErrorResponse
// @Failure      500  {object}  types.ErrorResponse
// @Failure      503  {object}  types.ErrorResponse
// @Router       /api/upload/aiModel [post]
func (a *api) uploadModel(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		observeUpload("model", writeFormError(w, err), 0)
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}
	up := manager.ModelUpload{Project: r.PostFormValue("project_id")}
	var size int64
	var files []multipart.File
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	open := func(fh *multipart.FileHeader) (manager.FilePart, error) {
		f, err := fh.Open()
		if err != nil {
			return manager.FilePart{}, err
		}
		files = append(files, f)
		size += fh.Size
		return manager.FilePart{Name: fh.Filename, Body: f}, nil
	}
	if r.MultipartForm != nil {
		if fhs := r.MultipartForm.File["file"]; len(fhs) > 0 {
			p, err := open(fhs[0])
			if err != nil {
				observeUpload("model", writeServiceError(w, err, "upload"), 0)
				return
			}
			up.File = &p
		}
		for _, fh := range r.MultipartForm.File["weights"] {
			p, err := open(fh)
			if err != nil {
				observeUpload("model", writeServiceError(w, err, "upload"), 0)
				return
			}
			up.Weights = append(up.Weights, p)
		}
	}

	ctx, cancel := workContext(r, 0)
	defer cancel()
	resp, err := a.svc.SaveModel(ctx, up)
	if err != nil {
		observeUpload("model", writeServiceError(w, err, "upload"), 0)
		return
	}
	observeUpload("model", http.StatusOK, size)
	writeJSON(w, http.StatusOK, resp)
}

// listFiles godoc
// @Summary      List project files
// @Description  Maps each existing folder (jsondata, aiModels) to its sorted filenames.
// @Tags         files
// @Produce      json
// @Param        project_id  path  string  true  "Project id"
// @Success      200  {object}  types.FileListing
// @Failure      400  {object}  types.ErrorResponse
// @Router       /api/files/{project_id} [get]
func (a *api) listFiles(w http.ResponseWriter, r *http.Request) {
	listing, err := a.svc.ListFiles(chi.URLParam(r, "project_id"))
	if err != nil {
		writeServiceError(w, err, "")
		return
	}
	if listing == nil {
		listing = types.FileListing{}
	}
	writeJSON(w, http.StatusOK, listing)
}

// viewFile godoc
// @Summary      Download a stored file
// @Tags         files
// @Produce      octet-stream
// @Param        project_id  path  string  true  "Project id"
// @Param        folder      path  string  true  "jsondata or aiModels"
// @Param        filename    path  string  true  "Filename"
// @Success      200
// @Failure      404  {object}  types.ErrorResponse
// @Router       /api/files/view/{project_id}/{folder}/{filename} [get]
func (a *api) viewFile(w http.ResponseWriter, r *http.Request) {
	f, fi, err := a.svc.OpenFile(chi.URLParam(r, "project_id"), chi.URLParam(r, "folder"), chi.URLParam(r, "filename"))
	if err != nil {
		writeServiceError(w, err, "")
		return
	}
	defer f.Close()
	http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
}

// listModels godoc
// @Summary      List project models
// @Tags         models
// @Produce      json
// @Param        project_id  path  string  true  "Project id"
// @Success      200  {object}  types.ModelsResponse
// @Failure      400  {object}  types.ErrorResponse
// @Router       /api/models/{project_id} [get]
func (a *api) listModels(w http.ResponseWriter, r *http.Request) {
	models, err := a.svc.ListModels(chi.URLParam(r, "project_id"))
	if err != nil {
		writeServiceError(w, err, "")
		return
	}
	if models == nil {
		models = []types.Model{}
	}
	writeJSON(w, http.StatusOK, types.ModelsResponse{Models: models})
}

// predict godoc
// @Summary      Run inference
// @Description  Loads the stored model and evaluates the request data.
// @Tags         models
// @Accept       json
// @Produce      json
// @Param        project_id  path  string                true  "Project id"
// @Param        model_name  path  string                true  "Model filename"
// @Param        request     body  types.PredictRequest  true  "Input data"
// @Success      200  {object}  types.PredictResponse
// @Failure      400  {object}  types.ErrorResponse
// @Failure      404  {object}  types.ErrorResponse
// @Failure      429  {object}  types.ErrorResponse
// @Failure      503  {object}  types.ErrorResponse
// @Router       /api/models/{project_id}/{model_name} [post]
func (a *api) predict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	project, model := chi.URLParam(r, "project_id"), chi.URLParam(r, "model_name")
	var req types.PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		// An unknown model or project outranks a malformed body.
		if _, lerr := a.svc.Model(project, model); lerr != nil {
			writeServiceError(w, lerr, "inference")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	// Join server base context with request context so shutdown cancels work too.
	ctx, cancel := workContext(r, time.Duration(inferTimeout)*time.Second)
	defer cancel()
	start := time.Now()
	out, err := a.svc.Predict(ctx, project, model, req.Data)
	if err != nil {
		// If the client went away there is nobody to answer.
		if r.Context().Err() != nil {
			return
		}
		status := writeServiceError(w, err, "inference")
		inferenceDuration.WithLabelValues(strconv.Itoa(status)).Observe(time.Since(start).Seconds())
		return
	}
	inferenceDuration.WithLabelValues(strconv.Itoa(http.StatusOK)).Observe(time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, types.PredictResponse{Predictions: out})
}
