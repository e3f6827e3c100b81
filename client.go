package digidoc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/emrgen/digidoc/internal/access"
	"github.com/emrgen/digidoc/internal/audit"
	"github.com/emrgen/digidoc/internal/disposal"
	"github.com/emrgen/digidoc/internal/lifecycle"
	"github.com/emrgen/digidoc/internal/model"
	"github.com/emrgen/digidoc/internal/server"
	"github.com/emrgen/digidoc/internal/service"
)

// APIError is a failed call. It matches the model sentinel of its code with errors.Is.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	sentinel := service.Sentinel(e.Code)
	return sentinel != nil && sentinel == target
}

// Client talks to the rest gateway as one principal.
type Client struct {
	baseURL   string
	principal model.Principal
	http      *http.Client
}

func NewClient(baseURL string, principal model.Principal) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		principal: principal,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the underlying http client.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

func (c *Client) IngestDocument(ctx context.Context, req *service.IngestRequest) (*model.Document, error) {
	return fetch[model.Document](ctx, c, http.MethodPost, "/v1/documents", nil, req)
}

func (c *Client) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	return fetch[model.Document](ctx, c, http.MethodGet, "/v1/documents/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ApplyTransition(ctx context.Context, id string, event model.Event, payload lifecycle.Payload) (*model.Document, error) {
	body := server.TransitionRequest{Event: event, Payload: payload}
	return fetch[model.Document](ctx, c, http.MethodPost, "/v1/documents/"+url.PathEscape(id)+"/transitions", nil, body)
}

func (c *Client) Reclassify(ctx context.Context, id string, req service.ReclassifyRequest) (*model.Document, error) {
	return fetch[model.Document](ctx, c, http.MethodPost, "/v1/documents/"+url.PathEscape(id)+"/reclassify", nil, req)
}

func (c *Client) EvaluateAccess(ctx context.Context, id string) (*access.Decision, error) {
	return fetch[access.Decision](ctx, c, http.MethodGet, "/v1/documents/"+url.PathEscape(id)+"/access", nil, nil)
}

func (c *Client) RequestAccess(ctx context.Context, id, reason string) (*model.AccessRequest, error) {
	body := server.AccessRequestBody{Reason: reason}
	return fetch[model.AccessRequest](ctx, c, http.MethodPost, "/v1/documents/"+url.PathEscape(id)+"/access-requests", nil, body)
}

// ListAccessRequests lists requests of one document, or of all documents when documentID is empty.
func (c *Client) ListAccessRequests(ctx context.Context, documentID string, status model.AccessRequestStatus) ([]*model.AccessRequest, error) {
	path := "/v1/access-requests"
	if documentID != "" {
		path = "/v1/documents/" + url.PathEscape(documentID) + "/access-requests"
	}
	query := url.Values{}
	if status != "" {
		query.Set("status", string(status))
	}

	var res struct {
		Requests []*model.AccessRequest `json:"requests"`
	}
	if err := c.do(ctx, http.MethodGet, path, query, nil, &res); err != nil {
		return nil, err
	}
	return res.Requests, nil
}

func (c *Client) DecideAccessRequest(ctx context.Context, requestID string, approve bool) (*model.AccessRequest, error) {
	body := server.DecisionBody{Approve: approve}
	return fetch[model.AccessRequest](ctx, c, http.MethodPost, "/v1/access-requests/"+url.PathEscape(requestID)+"/decision", nil, body)
}

// ListVersions lists the versions of a lineage newest first. Versions the principal may
// not read come back redacted.
func (c *Client) ListVersions(ctx context.Context, lineageID string) ([]*service.VersionView, error) {
	var res struct {
		Versions []*service.VersionView `json:"versions"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/lineages/"+url.PathEscape(lineageID)+"/versions", nil, nil, &res); err != nil {
		return nil, err
	}
	return res.Versions, nil
}

func (c *Client) ResolveCurrent(ctx context.Context, lineageID string) (*service.VersionView, error) {
	return fetch[service.VersionView](ctx, c, http.MethodGet, "/v1/lineages/"+url.PathEscape(lineageID)+"/current", nil, nil)
}

func (c *Client) QueryAudit(ctx context.Context, filter audit.Filter) ([]*model.AuditEvent, error) {
	query := url.Values{}
	set := func(key, value string) {
		if value != "" {
			query.Set(key, value)
		}
	}
	set("documentId", filter.DocumentID)
	set("lineageId", filter.LineageID)
	set("performedBy", filter.PerformedBy)
	set("action", string(filter.Action))
	set("scope", string(filter.Scope))
	if !filter.From.IsZero() {
		set("from", filter.From.UTC().Format(time.RFC3339))
	}
	if !filter.To.IsZero() {
		set("to", filter.To.UTC().Format(time.RFC3339))
	}
	if filter.Limit > 0 {
		set("limit", strconv.Itoa(filter.Limit))
	}

	var res struct {
		Events []*model.AuditEvent `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/audit", query, nil, &res); err != nil {
		return nil, err
	}
	return res.Events, nil
}

func (c *Client) RestrictedAccessReport(ctx context.Context, windowDays int) ([]*model.AuditEvent, error) {
	query := url.Values{"windowDays": []string{strconv.Itoa(windowDays)}}
	var res struct {
		Events []*model.AuditEvent `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/audit/restricted", query, nil, &res); err != nil {
		return nil, err
	}
	return res.Events, nil
}

func (c *Client) LegalHold(ctx context.Context) (bool, error) {
	var res server.LegalHoldBody
	err := c.do(ctx, http.MethodGet, "/v1/legal-hold", nil, nil, &res)
	return res.Active, err
}

func (c *Client) SetLegalHold(ctx context.Context, active bool) error {
	return c.do(ctx, http.MethodPut, "/v1/legal-hold", nil, server.LegalHoldBody{Active: active}, nil)
}

func (c *Client) SweepRetention(ctx context.Context) (*disposal.Report, error) {
	return fetch[disposal.Report](ctx, c, http.MethodPost, "/v1/retention/sweep", nil, nil)
}

func (c *Client) BatchCompleteness(ctx context.Context, batchID string, expectedPages int) (*service.BatchReport, error) {
	query := url.Values{"expectedPages": []string{strconv.Itoa(expectedPages)}}
	return fetch[service.BatchReport](ctx, c, http.MethodGet, "/v1/batches/"+url.PathEscape(batchID)+"/completeness", query, nil)
}

func fetch[T any](ctx context.Context, c *Client, method, path string, query url.Values, in any) (*T, error) {
	out := new(T)
	if err := c.do(ctx, method, path, query, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(server.HeaderPrincipalID, c.principal.ID)
	if c.principal.Role != "" {
		req.Header.Set(server.HeaderPrincipalRole, string(c.principal.Role))
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	if res.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: res.StatusCode}
		var errBody server.ErrorBody
		if json.Unmarshal(data, &errBody) == nil && errBody.Code != "" {
			apiErr.Code = errBody.Code
			apiErr.Message = errBody.Message
		} else {
			apiErr.Code = http.StatusText(res.StatusCode)
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
