package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"casekeeper/internal/platform/metrics"
	"casekeeper/pkg/platform/circuit"
	"casekeeper/pkg/requestcontext"
)

const (
	opCreatePolicy  = "create_policy"
	opStoreArtifact = "store_artifact"
	opFetchArtifact = "fetch_artifact"

	// maxErrorBody caps how much of a failed response is read into messages.
	maxErrorBody = 4 << 10
)

// HTTPClient talks to the ledger gateway over HTTP.
//
//	POST {base}/records?org={tenant}           multipart: file, caseId, recordType, policyId
//	GET  {base}/records/{recordId}?org={tenant}
//	POST {base}/records/policies?org={tenant}  JSON: policyId, categories, rules
type HTTPClient struct {
	baseURL *url.URL
	http    *http.Client
	timeout time.Duration
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*HTTPClient)

func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) {
		h.http = c
	}
}

// WithTimeout bounds every call individually.
func WithTimeout(d time.Duration) Option {
	return func(h *HTTPClient) {
		if d > 0 {
			h.timeout = d
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(h *HTTPClient) {
		h.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *HTTPClient) {
		h.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *HTTPClient) {
		h.metrics = m
	}
}

func NewHTTPClient(baseURL string, opts ...Option) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse ledger url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("ledger url %q must be absolute", baseURL)
	}
	h := &HTTPClient{
		baseURL: u,
		http:    &http.Client{},
		timeout: 30 * time.Second,
		breaker: circuit.New("ledger"),
		logger:  slog.Default(),
		tracer:  otel.Tracer("casekeeper/ledger"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

type createPolicyRequest struct {
	PolicyID   string          `json:"policyId"`
	Categories json.RawMessage `json:"categories"`
	Rules      json.RawMessage `json:"rules"`
}

type createPolicyResponse struct {
	PolicyID string `json:"policyId"`
}

type storeArtifactResponse struct {
	RecordID string `json:"recordId"`
}

func (h *HTTPClient) CreatePolicy(ctx context.Context, policyID string, categories, rules json.RawMessage, tenant string) (string, error) {
	body, err := json.Marshal(createPolicyRequest{PolicyID: policyID, Categories: categories, Rules: rules})
	if err != nil {
		return "", &Error{Kind: KindRejected, Op: opCreatePolicy, Message: "malformed policy", Err: err}
	}

	var out createPolicyResponse
	err = h.do(ctx, opCreatePolicy, tenant, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint(tenant, "records", "policies"), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, func(resp *http.Response) error {
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return &Error{Kind: KindUnavailable, Op: opCreatePolicy, Message: "read response", Err: err}
		}
		if len(bytes.TrimSpace(raw)) > 0 {
			// A body that is not our shape is treated as a bare confirmation.
			if err := json.Unmarshal(raw, &out); err != nil {
				h.logger.DebugContext(ctx, "ledger policy confirmation not decodable, echoing policy id",
					"policy_id", policyID,
					"status", resp.StatusCode,
					"body_bytes", len(raw),
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if out.PolicyID == "" {
		return policyID, nil
	}
	return out.PolicyID, nil
}

func (h *HTTPClient) StoreArtifact(ctx context.Context, upload ArtifactUpload, tenant string) (string, error) {
	body, contentType, err := encodeUpload(upload)
	if err != nil {
		return "", &Error{Kind: KindRejected, Op: opStoreArtifact, Message: "encode upload", Err: err}
	}

	var out storeArtifactResponse
	err = h.do(ctx, opStoreArtifact, tenant, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint(tenant, "records"), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	}, func(resp *http.Response) error {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return &Error{Kind: KindRejected, Op: opStoreArtifact, Message: "malformed response", Err: err}
		}
		if out.RecordID == "" {
			return &Error{Kind: KindRejected, Op: opStoreArtifact, Message: "ledger did not return a recordId"}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return out.RecordID, nil
}

func (h *HTTPClient) FetchArtifact(ctx context.Context, recordID, tenant string) ([]byte, error) {
	if recordID == "" {
		return nil, &Error{Kind: KindNotFound, Op: opFetchArtifact, Message: "empty record id"}
	}
	var data []byte
	err := h.do(ctx, opFetchArtifact, tenant, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, h.endpoint(tenant, "records", recordID), nil)
	}, func(resp *http.Response) error {
		var err error
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return &Error{Kind: KindUnavailable, Op: opFetchArtifact, Message: "read artifact", Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (h *HTTPClient) endpoint(tenant string, segments ...string) string {
	u := h.baseURL.JoinPath(segments...)
	q := url.Values{}
	q.Set("org", tenant)
	u.RawQuery = q.Encode()
	return u.String()
}

// do runs one call under the breaker, per-call timeout, span and metrics.
// Exactly one HTTP request is made; failures are never retried.
func (h *HTTPClient) do(
	ctx context.Context,
	op, tenant string,
	build func(context.Context) (*http.Request, error),
	decode func(*http.Response) error,
) (err error) {
	ctx, span := h.tracer.Start(ctx, "ledger."+op, trace.WithAttributes(
		attribute.String("ledger.op", op),
		attribute.String("ledger.tenant", tenant),
	))
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(KindRejected)
			if k, ok := KindOf(err); ok {
				outcome = string(k)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		h.metrics.ObserveLedgerCall(op, outcome, time.Since(start).Seconds())
		span.End()
	}()

	if !h.breaker.Allow() {
		return &Error{Kind: KindUnavailable, Op: op, Message: "circuit open"}
	}

	callCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := build(callCtx)
	if err != nil {
		return &Error{Kind: KindRejected, Op: op, Message: "build request", Err: err}
	}

	resp, err := h.http.Do(req)
	if err != nil {
		// A caller that went away says nothing about ledger health.
		if ctx.Err() == nil {
			h.recordUnavailable(ctx, op)
		}
		return &Error{Kind: KindUnavailable, Op: op, Message: transportMessage(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := decode(resp); err != nil {
			if IsKind(err, KindUnavailable) {
				h.recordUnavailable(ctx, op)
			}
			return err
		}
		h.recordSuccess(ctx)
		return nil
	}

	lerr := statusError(op, resp)
	if lerr.Kind == KindUnavailable {
		h.recordUnavailable(ctx, op)
	} else {
		// The ledger answered; it is reachable.
		h.recordSuccess(ctx)
	}
	return lerr
}

func (h *HTTPClient) recordUnavailable(ctx context.Context, op string) {
	if opened, _ := h.breaker.RecordFailure(); opened {
		h.logger.WarnContext(ctx, "ledger circuit opened", "op", op, "breaker", h.breaker.Name())
		h.metrics.SetBreakerOpen(true)
	}
}

func (h *HTTPClient) recordSuccess(ctx context.Context) {
	if _, change := h.breaker.RecordSuccess(); change.Closed {
		h.logger.InfoContext(ctx, "ledger circuit closed", "breaker", h.breaker.Name())
		h.metrics.SetBreakerOpen(false)
	}
}

func statusError(op string, resp *http.Response) *Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(raw))
	var structured struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &structured) == nil {
		if structured.Message != "" {
			msg = structured.Message
		} else if structured.Error != "" {
			msg = structured.Error
		}
	}

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return &Error{Kind: KindAccessDenied, Op: op, Message: msg}
	case resp.StatusCode == http.StatusNotFound:
		return &Error{Kind: KindNotFound, Op: op, Message: msg}
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return &Error{Kind: KindUnavailable, Op: op, Message: fmt.Sprintf("status %d", resp.StatusCode)}
	default:
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return &Error{Kind: KindRejected, Op: op, Message: msg}
	}
}

func transportMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "transport error"
}

func encodeUpload(upload ArtifactUpload) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, upload.Filename))
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(upload.Data); err != nil {
		return nil, "", err
	}

	recordType := upload.RecordType
	if recordType == "" {
		recordType = RecordTypeEvidence
	}
	fields := [][2]string{{"caseId", upload.CaseID}, {"recordType", recordType}}
	if upload.PolicyID != "" {
		fields = append(fields, [2]string{"policyId", upload.PolicyID})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
