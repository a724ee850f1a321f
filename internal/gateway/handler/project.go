package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"summeriq/internal/analysis"
	"summeriq/internal/docs"
	"summeriq/internal/llm"
	"summeriq/internal/logging"
	"summeriq/internal/project"
	"summeriq/internal/tree"
)

// ProjectService is the slice of project.Service the handlers call.
type ProjectService interface {
	UploadAndExtract(ctx context.Context, name string, data []byte) (string, error)
	Meta(ctx context.Context, id string) (*project.Meta, error)
	ListTree(ctx context.Context, id string) ([]*tree.FileNode, error)
	ReadFile(ctx context.Context, id, p string) ([]byte, error)
	AnalyzeFile(ctx context.Context, id, p string) (*analysis.Record, error)
	GetDocumentation(ctx context.Context, id string) (*docs.FinalDocument, error)
	Ask(ctx context.Context, id, question, p string) (string, error)
	DeleteProject(ctx context.Context, id string) error
}

type Options struct {
	UploadMaxBytes int64 // 0 means unlimited
	Logger         *zap.Logger
}

type ProjectHandler struct {
	svc  ProjectService
	opts Options
	log  *zap.Logger
}

func NewProjectHandler(svc ProjectService, opts Options) *ProjectHandler {
	return &ProjectHandler{svc: svc, opts: opts, log: logging.OrNop(opts.Logger)}
}

type uploadResponse struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
}

// HandleUpload accepts a multipart form with a "file" field, or a raw zip
// body with the name in the query string.
func (h *ProjectHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if h.opts.UploadMaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.UploadMaxBytes)
	}
	name, data, err := readUpload(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_argument", "archive is required")
		return
	}
	id, err := h.svc.UploadAndExtract(r.Context(), name, data)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	meta, err := h.svc.Meta(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{ProjectID: id, Name: meta.Name})
}

func readUpload(r *http.Request) (string, []byte, error) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		return name, data, err
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return "", nil, err
	}
	var data []byte
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", nil, err
		}
		switch part.FormName() {
		case "file":
			if data, err = io.ReadAll(part); err != nil {
				return "", nil, err
			}
			if name == "" {
				name = strings.TrimSuffix(path.Base(part.FileName()), ".zip")
			}
		case "name":
			raw, err := io.ReadAll(io.LimitReader(part, 256))
			if err != nil {
				return "", nil, err
			}
			if v := strings.TrimSpace(string(raw)); v != "" {
				name = v
			}
		}
		_ = part.Close()
	}
	if name == "." || name == "/" {
		name = ""
	}
	return name, data, nil
}

func (h *ProjectHandler) HandleMeta(w http.ResponseWriter, r *http.Request) {
	meta, err := h.svc.Meta(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (h *ProjectHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteProject(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectHandler) HandleTree(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.svc.ListTree(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if nodes == nil {
		nodes = []*tree.FileNode{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tree": nodes})
}

// HandleFile returns raw file bytes.
func (h *ProjectHandler) HandleFile(w http.ResponseWriter, r *http.Request) {
	p := strings.TrimSpace(r.URL.Query().Get("path"))
	if p == "" {
		writeError(w, http.StatusBadRequest, "invalid_argument", "path is required")
		return
	}
	data, err := h.svc.ReadFile(r.Context(), r.PathValue("id"), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

type analyzeRequest struct {
	Path string `json:"path"`
}

func (h *ProjectHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var in analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "invalid json body")
		return
	}
	if strings.TrimSpace(in.Path) == "" {
		writeError(w, http.StatusBadRequest, "invalid_argument", "path is required")
		return
	}
	rec, err := h.svc.AnalyzeFile(r.Context(), r.PathValue("id"), in.Path)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *ProjectHandler) HandleDocumentation(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.GetDocumentation(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type askRequest struct {
	Question string `json:"question"`
	Path     string `json:"path,omitempty"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

func (h *ProjectHandler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	var in askRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "invalid json body")
		return
	}
	question := strings.TrimSpace(in.Question)
	if question == "" {
		writeError(w, http.StatusBadRequest, "invalid_argument", "question is required")
		return
	}
	answer, err := h.svc.Ask(r.Context(), r.PathValue("id"), question, strings.TrimSpace(in.Path))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, askResponse{Answer: answer})
}

func (h *ProjectHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		return
	}
	status, code := statusFor(err)
	var perr *llm.ProviderError
	if status == http.StatusTooManyRequests && errors.As(err, &perr) && perr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(perr.RetryAfter.Seconds()))))
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		h.log.Debug("request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, code, err.Error())
}
