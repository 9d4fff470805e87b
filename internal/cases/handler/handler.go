package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"casekeeper/internal/authz"
	"casekeeper/internal/cases/archive"
	"casekeeper/internal/cases/models"
	dErrors "casekeeper/pkg/domain-errors"
	"casekeeper/pkg/platform/httputil"
	"casekeeper/pkg/requestcontext"
)

const (
	maxJSONBody       = 1 << 20
	multipartMemory   = 32 << 20
	defaultMaxBytes   = 50 << 20
	defaultMaxFiles   = 5
	documentsField    = "documents[]"
	documentsFieldAlt = "documents"
)

// Service defines the interface for case operations.
type Service interface {
	CreateCase(ctx context.Context, p *authz.Principal, req models.CreateCaseRequest) (*models.CreateCaseResult, error)
	UploadDocuments(ctx context.Context, p *authz.Principal, caseID string, files []models.UploadFile) (*models.UploadReport, error)
	FetchDocument(ctx context.Context, p *authz.Principal, caseID, docID string) (*models.Artifact, error)
	OpenArchive(ctx context.Context, p *authz.Principal, caseID string) (*archive.Job, error)
	ListCases(ctx context.Context, p *authz.Principal) ([]*models.Case, error)
	GetCase(ctx context.Context, p *authz.Principal, caseID string) (*models.Case, error)
	UpdateCase(ctx context.Context, p *authz.Principal, caseID string, req models.UpdateCaseRequest) (*models.Case, error)
	AddUpdate(ctx context.Context, p *authz.Principal, caseID, text string) (*models.Update, error)
	RemoveDocument(ctx context.Context, p *authz.Principal, caseID, docID string) error
}

// Authorizer screens uploads before the request body is read.
type Authorizer interface {
	Check(ctx context.Context, p *authz.Principal, action authz.Action) (authz.Scope, error)
}

type authorizeFunc func(p *authz.Principal, action authz.Action) (authz.Scope, error)

func (f authorizeFunc) Check(_ context.Context, p *authz.Principal, action authz.Action) (authz.Scope, error) {
	return f(p, action)
}

// Handler handles case endpoints.
type Handler struct {
	cases    Service
	gate     Authorizer
	logger   *slog.Logger
	maxBytes int64
	maxFiles int
}

type Option func(*Handler)

// WithUploadLimits caps a multipart request's total size and file count.
func WithUploadLimits(maxBytes int64, maxFiles int) Option {
	return func(h *Handler) {
		if maxBytes > 0 {
			h.maxBytes = maxBytes
		}
		if maxFiles > 0 {
			h.maxFiles = maxFiles
		}
	}
}

// WithAuthorizer sets the gate used to screen uploads, so denials are
// audited. Without it the pure authz.Authorize decision is used.
func WithAuthorizer(gate Authorizer) Option {
	return func(h *Handler) {
		if gate != nil {
			h.gate = gate
		}
	}
}

func New(cases Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		cases:    cases,
		gate:     authorizeFunc(authz.Authorize),
		logger:   logger,
		maxBytes: defaultMaxBytes,
		maxFiles: defaultMaxFiles,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts case routes. The router must already authenticate.
func (h *Handler) Register(r chi.Router) {
	r.Route("/cases", func(r chi.Router) {
		r.Post("/", h.handleCreateCase)
		r.Get("/", h.handleListCases)
		r.Route("/{caseID}", func(r chi.Router) {
			r.Get("/", h.handleGetCase)
			r.Patch("/", h.handleUpdateCase)
			r.Post("/updates", h.handleAddUpdate)
			r.Post("/documents", h.handleUploadDocuments)
			r.Get("/documents/{docID}", h.handleFetchDocument)
			r.Delete("/documents/{docID}", h.handleRemoveDocument)
			r.Get("/archive", h.handleArchive)
		})
	})
}

type caseListResponse struct {
	Cases []*models.Case `json:"cases"`
}

type uploadResponse struct {
	UploadReport *models.UploadReport `json:"upload_report"`
}

type addUpdateRequest struct {
	Text string `json:"text"`
}

func (h *Handler) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.screenUpload(w, r, authz.ActionCreateCase) {
		return
	}
	files, err := h.readMultipart(w, r)
	if err != nil {
		h.logFailure(ctx, "invalid create case request", err)
		httputil.WriteError(w, err)
		return
	}

	req := models.CreateCaseRequest{
		Title:       r.PostFormValue("title"),
		Description: r.PostFormValue("description"),
		Priority:    models.Priority(r.PostFormValue("priority")),
		PolicyID:    r.PostFormValue("policy_id"),
		Files:       files,
	}
	res, err := h.cases.CreateCase(ctx, authz.PrincipalFrom(ctx), req)
	if err != nil {
		h.logFailure(ctx, "failed to create case", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

// screenUpload rejects callers whose role can never perform action before any
// of the multipart body is read. Scope checks stay in the service.
func (h *Handler) screenUpload(w http.ResponseWriter, r *http.Request, action authz.Action) bool {
	ctx := r.Context()
	if _, err := h.gate.Check(ctx, authz.PrincipalFrom(ctx), action); err != nil {
		h.logFailure(ctx, "upload rejected before reading body", err)
		httputil.WriteError(w, err)
		return false
	}
	return true
}

func (h *Handler) handleListCases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cases, err := h.cases.ListCases(ctx, authz.PrincipalFrom(ctx))
	if err != nil {
		h.logFailure(ctx, "failed to list cases", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, caseListResponse{Cases: cases})
}

func (h *Handler) handleGetCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.cases.GetCase(ctx, authz.PrincipalFrom(ctx), chi.URLParam(r, "caseID"))
	if err != nil {
		h.logFailure(ctx, "failed to load case", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleUpdateCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.UpdateCaseRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	c, err := h.cases.UpdateCase(ctx, authz.PrincipalFrom(ctx), chi.URLParam(r, "caseID"), req)
	if err != nil {
		h.logFailure(ctx, "failed to update case", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleAddUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req addUpdateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	update, err := h.cases.AddUpdate(ctx, authz.PrincipalFrom(ctx), chi.URLParam(r, "caseID"), req.Text)
	if err != nil {
		h.logFailure(ctx, "failed to add case update", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, update)
}

func (h *Handler) handleUploadDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.screenUpload(w, r, authz.ActionMutateCase) {
		return
	}
	files, err := h.readMultipart(w, r)
	if err != nil {
		h.logFailure(ctx, "invalid upload request", err)
		httputil.WriteError(w, err)
		return
	}
	report, err := h.cases.UploadDocuments(ctx, authz.PrincipalFrom(ctx), chi.URLParam(r, "caseID"), files)
	if err != nil {
		h.logFailure(ctx, "failed to upload documents", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, uploadResponse{UploadReport: report})
}

func (h *Handler) handleFetchDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	art, err := h.cases.FetchDocument(ctx, authz.PrincipalFrom(ctx), chi.URLParam(r, "caseID"), chi.URLParam(r, "docID"))
	if err != nil {
		h.logFailure(ctx, "failed to fetch document", err)
		httputil.WriteError(w, err)
		return
	}
	contentType := art.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", attachment(art.Name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(art.Data); err != nil {
		h.logger.WarnContext(ctx, "failed to write document", "error", err, "request_id", requestcontext.RequestID(ctx))
	}
}

func (h *Handler) handleRemoveDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := h.cases.RemoveDocument(ctx, authz.PrincipalFrom(ctx), chi.URLParam(r, "caseID"), chi.URLParam(r, "docID"))
	if err != nil {
		h.logFailure(ctx, "failed to remove document", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	job, err := h.cases.OpenArchive(ctx, authz.PrincipalFrom(ctx), chi.URLParam(r, "caseID"))
	if err != nil {
		h.logFailure(ctx, "failed to open archive", err)
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", attachment(job.FileName()))
	w.WriteHeader(http.StatusOK)
	// Headers are sent; a failure from here on can only truncate the stream.
	if _, err := job.WriteTo(ctx, w); err != nil {
		h.logger.WarnContext(ctx, "archive stream aborted",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

// readMultipart parses the body and returns the submitted documents. Plain
// form fields are left on r.PostForm.
func (h *Handler) readMultipart(w http.ResponseWriter, r *http.Request) ([]models.UploadFile, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, dErrors.Newf(dErrors.CodeBadRequest, "upload exceeds %d bytes", h.maxBytes)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid multipart body")
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := slices.Concat(r.MultipartForm.File[documentsField], r.MultipartForm.File[documentsFieldAlt])
	if len(headers) > h.maxFiles {
		return nil, dErrors.Newf(dErrors.CodeValidation, "at most %d documents per request", h.maxFiles)
	}
	files := make([]models.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := readFile(fh)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read uploaded file")
		}
		files = append(files, f)
	}
	return files, nil
}

func readFile(fh *multipart.FileHeader) (models.UploadFile, error) {
	f, err := fh.Open()
	if err != nil {
		return models.UploadFile{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return models.UploadFile{}, err
	}
	return models.UploadFile{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	level := slog.LevelWarn
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}
