// Package service is the document orchestrator. It keeps case metadata and the
// ledger consistent: a case only ever references artifacts the ledger confirmed.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"casekeeper/internal/authz"
	"casekeeper/internal/cases/archive"
	"casekeeper/internal/cases/models"
	"casekeeper/internal/ledger"
	"casekeeper/internal/platform/metrics"
	policymodels "casekeeper/internal/policy/models"
	dErrors "casekeeper/pkg/domain-errors"
	"casekeeper/pkg/platform/audit"
	"casekeeper/pkg/platform/sentinel"
	"casekeeper/pkg/requestcontext"
)

const defaultContentType = "application/octet-stream"

type Store interface {
	Create(ctx context.Context, c *models.Case) error
	FindByID(ctx context.Context, id string, scope authz.Scope) (*models.Case, error)
	List(ctx context.Context, scope authz.Scope) ([]*models.Case, error)
	AppendDocuments(ctx context.Context, id string, docs []models.Document, at time.Time) error
	RemoveDocument(ctx context.Context, id, docID string, at time.Time) error
	UpdateFields(ctx context.Context, id string, changes models.FieldChanges, at time.Time) error
	AppendUpdate(ctx context.Context, id string, update models.Update) error
}

// PolicyResolver finds an active policy by internal id.
type PolicyResolver interface {
	ResolveSelectable(ctx context.Context, id string) (*policymodels.Policy, error)
}

type LedgerClient interface {
	StoreArtifact(ctx context.Context, upload ledger.ArtifactUpload, tenant string) (string, error)
	FetchArtifact(ctx context.Context, recordID, tenant string) ([]byte, error)
}

type Authorizer interface {
	Check(ctx context.Context, p *authz.Principal, action authz.Action) (authz.Scope, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store          Store
	policies       PolicyResolver
	ledger         LedgerClient
	gate           Authorizer
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	concurrency    int
	appendWait     time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithUploadConcurrency bounds in-flight ledger stores per request. Values
// below 1 are ignored.
func WithUploadConcurrency(n int) Option {
	return func(s *Service) {
		if n >= 1 {
			s.concurrency = n
		}
	}
}

func New(store Store, policies PolicyResolver, ledgerClient LedgerClient, gate Authorizer, opts ...Option) *Service {
	s := &Service{
		store:       store,
		policies:    policies,
		ledger:      ledgerClient,
		gate:        gate,
		logger:      slog.Default(),
		concurrency: 1,
		appendWait:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCase persists the case first, then stores each file in the ledger and
// attaches the confirmed ones in a single append. File failures are reported
// in the result; the case exists regardless.
func (s *Service) CreateCase(ctx context.Context, p *authz.Principal, req models.CreateCaseRequest) (*models.CreateCaseResult, error) {
	if _, err := s.gate.Check(ctx, p, authz.ActionCreateCase); err != nil {
		return nil, err
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	policy, err := s.policies.ResolveSelectable(ctx, req.PolicyID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	caseNumber, err := newCaseNumber(now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate case number")
	}
	c := &models.Case{
		ID:             uuid.NewString(),
		CaseNumber:     caseNumber,
		Title:          req.Title,
		Description:    req.Description,
		Priority:       req.Priority,
		Status:         models.StatusOpen,
		AssignedTo:     p.UserID,
		Jurisdiction:   p.Jurisdiction,
		PolicyID:       policy.ID,
		LedgerPolicyID: policy.LedgerID(),
		Documents:      []models.Document{},
		Updates:        []models.Update{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Create(ctx, c); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "case number already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save case")
	}
	s.metrics.IncCasesCreated()
	s.logger.InfoContext(ctx, "case created",
		"case_id", c.ID,
		"case_number", c.CaseNumber,
		"policy_id", policy.PolicyID,
		"assigned_to", p.UserID,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.logAudit(ctx, audit.Event{
		ActorID: p.UserID,
		Subject: c.ID,
		Action:  string(audit.EventCaseCreated),
		Tenant:  p.Tenant,
	})

	docs, report, err := s.storeAndAttach(ctx, p, c, req.Files)
	if err != nil {
		return nil, err
	}
	c.Documents = append(c.Documents, docs...)
	if len(docs) > 0 {
		c.UpdatedAt = docs[0].UploadedAt
	}
	return &models.CreateCaseResult{Case: c, Report: report}, nil
}

// UploadDocuments attaches files to an existing case the principal may mutate.
func (s *Service) UploadDocuments(ctx context.Context, p *authz.Principal, caseID string, files []models.UploadFile) (*models.UploadReport, error) {
	c, err := s.loadCase(ctx, p, authz.ActionMutateCase, caseID)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "no documents provided")
	}
	_, report, err := s.storeAndAttach(ctx, p, c, files)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

type storeResult struct {
	doc models.Document
	err error
}

// storeAndAttach stores every file, waits for all of them, then appends the
// confirmed documents in submission order. The append is detached from the
// caller so confirmed artifacts are not orphaned by a dropped request.
func (s *Service) storeAndAttach(ctx context.Context, p *authz.Principal, c *models.Case, files []models.UploadFile) ([]models.Document, models.UploadReport, error) {
	report := models.UploadReport{Succeeded: []models.StoredDocument{}, Failed: []models.FileFailure{}}
	if len(files) == 0 {
		return nil, report, nil
	}

	results := make([]storeResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, f := range files {
		g.Go(func() error {
			results[i] = s.storeOne(gctx, p, c, f)
			return nil
		})
	}
	_ = g.Wait()

	docs := make([]models.Document, 0, len(files))
	for i, r := range results {
		if r.err != nil {
			report.Failed = append(report.Failed, models.FileFailure{Name: files[i].Name, Reason: ledger.Reason(r.err)})
			continue
		}
		docs = append(docs, r.doc)
		report.Succeeded = append(report.Succeeded, models.StoredDocument{Name: r.doc.Name, RecordID: r.doc.RecordID, DocID: r.doc.ID})
	}

	requestID := requestcontext.RequestID(ctx)
	if report.HasFailures() {
		s.metrics.IncDocumentStoreFailed(len(report.Failed))
		for _, f := range report.Failed {
			s.logger.WarnContext(ctx, "document not stored in ledger",
				"case_id", c.ID,
				"file", f.Name,
				"reason", f.Reason,
				"request_id", requestID,
			)
			s.logAudit(ctx, audit.Event{
				ActorID: p.UserID,
				Subject: c.ID,
				Action:  string(audit.EventDocumentStoreFail),
				Reason:  f.Name + ": " + f.Reason,
				Tenant:  p.Tenant,
			})
		}
	}
	if len(docs) == 0 {
		return docs, report, nil
	}

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.appendWait)
	defer cancel()
	if err := s.store.AppendDocuments(actx, c.ID, docs, docs[0].UploadedAt); err != nil {
		recordIDs := make([]string, len(docs))
		for i, d := range docs {
			recordIDs[i] = d.RecordID
		}
		s.logger.ErrorContext(ctx, "ledger stored documents but case append failed",
			"case_id", c.ID,
			"record_ids", recordIDs,
			"error", err,
			"request_id", requestID,
		)
		return nil, report, dErrors.Wrap(err, dErrors.CodeInternal, "failed to attach documents")
	}

	s.metrics.IncDocumentsStored(len(docs))
	s.logger.InfoContext(ctx, "documents attached",
		"case_id", c.ID,
		"count", len(docs),
		"failed", len(report.Failed),
		"request_id", requestID,
	)
	s.logAudit(actx, audit.Event{
		ActorID: p.UserID,
		Subject: c.ID,
		Action:  string(audit.EventDocumentsAttached),
		Tenant:  p.Tenant,
	})
	return docs, report, nil
}

func (s *Service) storeOne(ctx context.Context, p *authz.Principal, c *models.Case, f models.UploadFile) storeResult {
	contentType := f.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}
	recordID, err := s.ledger.StoreArtifact(ctx, ledger.ArtifactUpload{
		Data:        f.Data,
		Filename:    f.Name,
		ContentType: contentType,
		CaseID:      c.ID,
		RecordType:  ledger.RecordTypeEvidence,
		PolicyID:    c.LedgerPolicyID,
	}, p.Tenant)
	if err != nil {
		return storeResult{err: err}
	}
	return storeResult{doc: models.Document{
		ID:          uuid.NewString(),
		Name:        f.Name,
		ContentType: contentType,
		RecordID:    recordID,
		Size:        int64(len(f.Data)),
		UploadedAt:  requestcontext.Now(ctx),
		UploadedBy:  p.UserID,
	}}
}

// FetchDocument returns one document's bytes from the ledger. A ledger policy
// denial is reported distinctly from a missing document.
func (s *Service) FetchDocument(ctx context.Context, p *authz.Principal, caseID, docID string) (*models.Artifact, error) {
	c, err := s.loadCase(ctx, p, authz.ActionReadCase, caseID)
	if err != nil {
		return nil, err
	}
	doc, ok := c.DocumentByID(docID)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "document not found")
	}

	data, err := s.ledger.FetchArtifact(ctx, doc.RecordID, p.Tenant)
	if err != nil {
		if ledger.IsKind(err, ledger.KindAccessDenied) {
			s.logger.WarnContext(ctx, "ledger denied document access",
				"case_id", c.ID,
				"record_id", doc.RecordID,
				"user_id", p.UserID,
				"tenant", p.Tenant,
				"request_id", requestcontext.RequestID(ctx),
			)
			s.logAudit(ctx, audit.Event{
				ActorID: p.UserID,
				Subject: doc.RecordID,
				Action:  string(audit.EventDocumentFetchDenied),
				Reason:  "access denied by policy",
				Tenant:  p.Tenant,
			})
		}
		return nil, ledger.ToDomain(err, "failed to fetch document")
	}

	s.logAudit(ctx, audit.Event{
		ActorID: p.UserID,
		Subject: doc.RecordID,
		Action:  string(audit.EventDocumentFetched),
		Tenant:  p.Tenant,
	})
	return &models.Artifact{Name: doc.Name, ContentType: doc.ContentType, Data: data}, nil
}

// OpenArchive prepares a zip of the case. Bytes are fetched when the job is
// written.
func (s *Service) OpenArchive(ctx context.Context, p *authz.Principal, caseID string) (*archive.Job, error) {
	c, err := s.loadCase(ctx, p, authz.ActionReadCase, caseID)
	if err != nil {
		return nil, err
	}
	fetch := func(ctx context.Context, doc models.Document) ([]byte, error) {
		data, err := s.ledger.FetchArtifact(ctx, doc.RecordID, p.Tenant)
		if err != nil {
			return nil, errors.New(ledger.Reason(err))
		}
		return data, nil
	}
	done := func(ctx context.Context, summary archive.Summary, err error) {
		outcome := "complete"
		switch {
		case errors.Is(err, context.Canceled):
			outcome = "canceled"
		case err != nil:
			outcome = "failed"
		case len(summary.Failed) > 0:
			outcome = "partial"
		}
		s.metrics.IncArchive(outcome)
		s.logger.InfoContext(ctx, "case archive streamed",
			"case_id", c.ID,
			"outcome", outcome,
			"included", summary.Included,
			"failed", len(summary.Failed),
			"request_id", requestcontext.RequestID(ctx),
		)
		if err != nil {
			return
		}
		s.logAudit(context.WithoutCancel(ctx), audit.Event{
			ActorID: p.UserID,
			Subject: c.ID,
			Action:  string(audit.EventCaseArchived),
			Reason:  outcome,
			Tenant:  p.Tenant,
		})
	}
	return archive.NewJob(c, fetch, archive.WithCompletion(done)), nil
}

// ListCases returns the cases in the principal's scope, newest first.
func (s *Service) ListCases(ctx context.Context, p *authz.Principal) ([]*models.Case, error) {
	scope, err := s.gate.Check(ctx, p, authz.ActionReadCase)
	if err != nil {
		return nil, err
	}
	if scope.Kind == authz.ScopeNone {
		return []*models.Case{}, nil
	}
	cases, err := s.store.List(ctx, scope)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list cases")
	}
	return cases, nil
}

func (s *Service) GetCase(ctx context.Context, p *authz.Principal, caseID string) (*models.Case, error) {
	return s.loadCase(ctx, p, authz.ActionReadCase, caseID)
}

// UpdateCase changes mutable fields on a case the principal owns.
func (s *Service) UpdateCase(ctx context.Context, p *authz.Principal, caseID string, req models.UpdateCaseRequest) (*models.Case, error) {
	c, err := s.loadCase(ctx, p, authz.ActionMutateCase, caseID)
	if err != nil {
		return nil, err
	}
	changes, err := req.Changes()
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	if err := s.store.UpdateFields(ctx, c.ID, changes, now); err != nil {
		return nil, s.storeError(err, "failed to update case")
	}
	s.logAudit(ctx, audit.Event{
		ActorID: p.UserID,
		Subject: c.ID,
		Action:  string(audit.EventCaseUpdated),
		Tenant:  p.Tenant,
	})
	updated, err := s.store.FindByID(ctx, c.ID, authz.AllScope())
	if err != nil {
		return nil, s.storeError(err, "failed to reload case")
	}
	return updated, nil
}

// AddUpdate appends a note to the case's update log.
func (s *Service) AddUpdate(ctx context.Context, p *authz.Principal, caseID, text string) (*models.Update, error) {
	c, err := s.loadCase(ctx, p, authz.ActionMutateCase, caseID)
	if err != nil {
		return nil, err
	}
	text, err = models.ValidateUpdateText(text)
	if err != nil {
		return nil, err
	}
	update := models.Update{Text: text, Timestamp: requestcontext.Now(ctx), UpdatedBy: p.UserID}
	if err := s.store.AppendUpdate(ctx, c.ID, update); err != nil {
		return nil, s.storeError(err, "failed to add update")
	}
	s.logAudit(ctx, audit.Event{
		ActorID: p.UserID,
		Subject: c.ID,
		Action:  string(audit.EventCaseUpdated),
		Reason:  "update added",
		Tenant:  p.Tenant,
	})
	return &update, nil
}

// RemoveDocument drops a document reference. The ledger record is untouched.
func (s *Service) RemoveDocument(ctx context.Context, p *authz.Principal, caseID, docID string) error {
	c, err := s.loadCase(ctx, p, authz.ActionMutateCase, caseID)
	if err != nil {
		return err
	}
	doc, ok := c.DocumentByID(docID)
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "document not found")
	}
	if err := s.store.RemoveDocument(ctx, c.ID, docID, requestcontext.Now(ctx)); err != nil {
		return s.storeError(err, "failed to remove document")
	}
	s.logger.InfoContext(ctx, "document reference removed",
		"case_id", c.ID,
		"record_id", doc.RecordID,
		"user_id", p.UserID,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.logAudit(ctx, audit.Event{
		ActorID: p.UserID,
		Subject: doc.RecordID,
		Action:  string(audit.EventDocumentRemoved),
		Tenant:  p.Tenant,
	})
	return nil
}

// loadCase authorizes action and loads the case within the granted scope.
// Out-of-scope cases are reported as not found.
func (s *Service) loadCase(ctx context.Context, p *authz.Principal, action authz.Action, caseID string) (*models.Case, error) {
	scope, err := s.gate.Check(ctx, p, action)
	if err != nil {
		return nil, err
	}
	if caseID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "case id is required")
	}
	c, err := s.store.FindByID(ctx, caseID, scope)
	if err != nil {
		return nil, s.storeError(err, "failed to load case")
	}
	return c, nil
}

func (s *Service) storeError(err error, message string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "case not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, message)
}

func (s *Service) logAudit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
			"request_id", event.RequestID,
		)
	}
}

func newCaseNumber(now time.Time) (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return fmt.Sprintf("CASE-%d-%s", now.UnixMilli(), hex.EncodeToString(b)), nil
}
