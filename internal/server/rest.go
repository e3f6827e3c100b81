package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	gatewayfile "github.com/black-06/grpc-gateway-file"
	"github.com/emrgen/digidoc/internal/audit"
	"github.com/emrgen/digidoc/internal/lifecycle"
	"github.com/emrgen/digidoc/internal/model"
	"github.com/emrgen/digidoc/internal/service"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/encoding/protojson"
)

const maxBodyBytes = 32 << 20

type TransitionRequest struct {
	Event   model.Event       `json:"event"`
	Payload lifecycle.Payload `json:"payload"`
}

type AccessRequestBody struct {
	Reason string `json:"reason"`
}

type DecisionBody struct {
	Approve bool `json:"approve"`
}

type LegalHoldBody struct {
	Active bool `json:"active"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type route struct {
	method  string
	pattern string
	handler runtime.HandlerFunc
}

// restHandler exposes the document service over json.
type restHandler struct {
	svc *service.DocumentService
}

// NewHandler builds the rest gateway for svc.
func NewHandler(svc *service.DocumentService) (http.Handler, error) {
	mux := runtime.NewServeMux(
		runtime.WithMarshalerOption(runtime.MIMEWildcard, &runtime.HTTPBodyMarshaler{
			Marshaler: &runtime.JSONPb{
				MarshalOptions: protojson.MarshalOptions{
					EmitUnpopulated: true,
				},
				UnmarshalOptions: protojson.UnmarshalOptions{
					DiscardUnknown: true,
				},
			},
		}),
		gatewayfile.WithHTTPBodyMarshaler(),
	)

	h := &restHandler{svc: svc}
	for _, r := range h.routes() {
		if err := mux.HandlePath(r.method, r.pattern, r.handler); err != nil {
			return nil, fmt.Errorf("register %s %s: %w", r.method, r.pattern, err)
		}
	}

	return mux, nil
}

func (h *restHandler) routes() []route {
	return []route{
		{http.MethodGet, "/healthz", h.health},

		{http.MethodPost, "/v1/documents", h.authed(h.ingest)},
		{http.MethodGet, "/v1/documents/{id}", h.authed(h.getDocument)},
		{http.MethodPost, "/v1/documents/{id}/transitions", h.authed(h.transition)},
		{http.MethodPost, "/v1/documents/{id}/reclassify", h.authed(h.reclassify)},
		{http.MethodGet, "/v1/documents/{id}/access", h.authed(h.evaluateAccess)},
		{http.MethodPost, "/v1/documents/{id}/access-requests", h.authed(h.requestAccess)},
		{http.MethodGet, "/v1/documents/{id}/access-requests", h.authed(h.listAccessRequests)},

		{http.MethodGet, "/v1/access-requests", h.authed(h.listAccessRequests)},
		{http.MethodPost, "/v1/access-requests/{id}/decision", h.authed(h.decideAccessRequest)},

		{http.MethodGet, "/v1/lineages/{id}/versions", h.authed(h.listVersions)},
		{http.MethodGet, "/v1/lineages/{id}/current", h.authed(h.resolveCurrent)},

		{http.MethodGet, "/v1/audit", h.authed(h.queryAudit)},
		{http.MethodGet, "/v1/audit/restricted", h.authed(h.restrictedReport)},

		{http.MethodGet, "/v1/legal-hold", h.authed(h.getLegalHold)},
		{http.MethodPut, "/v1/legal-hold", h.authed(h.setLegalHold)},
		{http.MethodPost, "/v1/retention/sweep", h.authed(h.sweepRetention)},
		{http.MethodGet, "/v1/batches/{id}/completeness", h.authed(h.batchCompleteness)},
	}
}

type authedFunc func(w http.ResponseWriter, r *http.Request, params map[string]string, principal model.Principal)

func (h *restHandler) authed(f authedFunc) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		principal, err := principalFromRequest(r)
		if errors.Is(err, errUnauthenticated) {
			writeJSON(w, http.StatusUnauthorized, ErrorBody{Code: codes.Unauthenticated.String(), Message: err.Error()})
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}
		f(w, r, params, principal)
	}
}

func (h *restHandler) health(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *restHandler) ingest(w http.ResponseWriter, r *http.Request, _ map[string]string, p model.Principal) {
	var req service.IngestRequest
	if !decode(w, r, &req) {
		return
	}
	doc, err := h.svc.IngestDocument(r.Context(), &req, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *restHandler) getDocument(w http.ResponseWriter, r *http.Request, params map[string]string, p model.Principal) {
	doc, err := h.svc.GetDocument(r.Context(), params["id"], p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *restHandler) transition(w http.ResponseWriter, r *http.Request, params map[string]string, p model.Principal) {
	var req TransitionRequest
	if !decode(w, r, &req) {
		return
	}
	doc, err := h.svc.ApplyTransition(r.Context(), params["id"], req.Event, req.Payload, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *restHandler) reclassify(w http.ResponseWriter, r *http.Request, params map[string]string, p model.Principal) {
	var req service.ReclassifyRequest
	if !decode(w, r, &req) {
		return
	}
	doc, err := h.svc.Reclassify(r.Context(), params["id"], req, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *restHandler) evaluateAccess(w http.ResponseWriter, r *http.Request, params map[string]string, p model.Principal) {
	decision, err := h.svc.EvaluateAccess(r.Context(), params["id"], p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (h *restHandler) requestAccess(w http.ResponseWriter, r *http.Request, params map[string]string, p model.Principal) {
	var body AccessRequestBody
	if !decode(w, r, &body) {
		return
	}
	req, err := h.svc.RequestAccess(r.Context(), params["id"], p, body.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *restHandler) listAccessRequests(w http.ResponseWriter, r *http.Request, params map[string]string, p model.Principal) {
	status := model.AccessRequestStatus(r.URL.Query().Get("status"))
	reqs, err := h.svc.ListAccessRequests(r.Context(), params["id"], status, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": reqs})
}

func (h *restHandler) decideAccessRequest(w http.ResponseWriter, r *http.Request, params map[string]string, p model.Principal) {
	var body DecisionBody
	if !decode(w, r, &body) {
		return
	}
	req, err := h.svc.DecideAccessRequest(r.Context(), params["id"], body.Approve, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// listVersions returns the lineage newest first, each version with the caller's access
// decision. Versions the caller may not read come back redacted.
func (h *restHandler) listVersions(w http.ResponseWriter, r *http.Request, params map[string]string, p model.Principal) {
	versions, err := h.svc.ListVersions(r.Context(), params["id"], p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func (h *restHandler) resolveCurrent(w http.ResponseWriter, r *http.Request, params map[string]string, p model.Principal) {
	current, err := h.svc.ResolveCurrent(r.Context(), params["id"], p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func (h *restHandler) queryAudit(w http.ResponseWriter, r *http.Request, _ map[string]string, p model.Principal) {
	q := r.URL.Query()
	filter := audit.Filter{
		DocumentID:  q.Get("documentId"),
		LineageID:   q.Get("lineageId"),
		PerformedBy: q.Get("performedBy"),
		Action:      model.Action(q.Get("action")),
		Scope:       model.Scope(q.Get("scope")),
	}

	var err error
	if filter.From, err = parseTime(q.Get("from")); err != nil {
		writeError(w, err)
		return
	}
	if filter.To, err = parseTime(q.Get("to")); err != nil {
		writeError(w, err)
		return
	}
	if filter.Limit, err = parseInt(q.Get("limit"), 0); err != nil {
		writeError(w, err)
		return
	}

	events, err := h.svc.QueryAudit(r.Context(), filter, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *restHandler) restrictedReport(w http.ResponseWriter, r *http.Request, _ map[string]string, p model.Principal) {
	days, err := parseInt(r.URL.Query().Get("windowDays"), 30)
	if err != nil {
		writeError(w, err)
		return
	}
	events, err := h.svc.RestrictedAccessReport(r.Context(), days, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *restHandler) getLegalHold(w http.ResponseWriter, r *http.Request, _ map[string]string, _ model.Principal) {
	active, err := h.svc.LegalHoldActive(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LegalHoldBody{Active: active})
}

func (h *restHandler) setLegalHold(w http.ResponseWriter, r *http.Request, _ map[string]string, p model.Principal) {
	var body LegalHoldBody
	if !decode(w, r, &body) {
		return
	}
	if err := h.svc.SetLegalHold(r.Context(), body.Active, p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *restHandler) sweepRetention(w http.ResponseWriter, r *http.Request, _ map[string]string, p model.Principal) {
	if !p.Elevated() {
		writeError(w, fmt.Errorf("%w: retention sweeps require elevated privilege", model.ErrPermissionDenied))
		return
	}
	report, err := h.svc.SweepRetention(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *restHandler) batchCompleteness(w http.ResponseWriter, r *http.Request, params map[string]string, _ model.Principal) {
	expected, err := parseInt(r.URL.Query().Get("expectedPages"), 0)
	if err != nil {
		writeError(w, err)
		return
	}
	report, err := h.svc.BatchCompleteness(r.Context(), params["id"], expected)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, fmt.Errorf("%w: read body: %v", model.ErrGuardFailed, err))
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, fmt.Errorf("%w: invalid json body: %v", model.ErrGuardFailed, err))
		return false
	}
	return true
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid time %q, want RFC3339", model.ErrGuardFailed, v)
	}
	return t, nil
}

func parseInt(v string, fallback int) (int, error) {
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid number %q", model.ErrGuardFailed, v)
	}
	return n, nil
}

func writeError(w http.ResponseWriter, err error) {
	code := service.Code(err)
	if code == codes.Internal {
		logrus.Errorf("internal error: %v", err)
	}
	writeJSON(w, runtime.HTTPStatusFromCode(code), ErrorBody{Code: service.Kind(err), Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("error writing response: %v", err)
	}
}
