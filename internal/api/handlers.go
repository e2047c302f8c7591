// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/cellarsync/internal/accounts"
	"github.com/tomtom215/cellarsync/internal/activity"
	"github.com/tomtom215/cellarsync/internal/agent"
	"github.com/tomtom215/cellarsync/internal/csvsource"
	"github.com/tomtom215/cellarsync/internal/inventory"
	"github.com/tomtom215/cellarsync/internal/logging"
	"github.com/tomtom215/cellarsync/internal/models"
	"github.com/tomtom215/cellarsync/internal/sync"
	"github.com/tomtom215/cellarsync/internal/validation"
	"github.com/tomtom215/cellarsync/internal/vinoshipper"
)

// MaxCSVBytes bounds a truth inventory upload.
const MaxCSVBytes = 10 << 20

const maxJSONBytes = 1 << 20

// Accounts is the part of accounts.Registry the handlers use.
type Accounts interface {
	List() ([]models.Account, error)
	Get(id string) (models.Account, error)
	Add(name, credential, fulfillment string) (models.Account, error)
	Remove(id string) error
	Select(id string) error
	Selected() (models.Account, error)
}

// Syncer is the part of sync.Manager the handlers use.
type Syncer interface {
	Inventory(ctx context.Context, accountID string, refresh bool) (models.Snapshot, error)
	SetTruth(accountID string, items []models.CanonicalItem) error
	Truth(accountID string) ([]models.CanonicalItem, error)
	FullSync(ctx context.Context, accountID string) (sync.PassResult, error)
	PartialSync(ctx context.Context, accountID string, skus []string) (sync.PassResult, error)
	Compare(ctx context.Context, accountID string, refresh bool) ([]models.DiffEntry, error)
	CheckAllAccounts(ctx context.Context) ([]models.AccountSummary, error)
	ValidateAccount(ctx context.Context, accountID string) (bool, error)
	Forget(accountID string) error
}

// ActionHandler executes agent action text.
type ActionHandler interface {
	Handle(ctx context.Context, text string) (agent.Reply, error)
}

// Handler serves the HTTP API.
type Handler struct {
	accounts    Accounts
	syncer      Syncer
	actions     ActionHandler
	log         *activity.Log
	hub         *activity.Hub
	corsOrigins []string
	startTime   time.Time
}

// NewHandler creates the API handler. hub may be nil, which disables the
// websocket endpoint.
func NewHandler(accts Accounts, syncer Syncer, actions ActionHandler, log *activity.Log, hub *activity.Hub, corsOrigins []string) *Handler {
	return &Handler{
		accounts:    accts,
		syncer:      syncer,
		actions:     actions,
		log:         log,
		hub:         hub,
		corsOrigins: corsOrigins,
		startTime:   time.Now(),
	}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string  `json:"status"`
	Accounts      int     `json:"accounts"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Health reports liveness and the number of configured accounts.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	list, err := h.accounts.List()
	if err != nil {
		rw.ServiceUnavailable("account registry unavailable")
		return
	}
	rw.Success(HealthResponse{
		Status:        "healthy",
		Accounts:      len(list),
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	})
}

// AccountsResponse lists accounts without their credentials.
type AccountsResponse struct {
	Accounts   []models.AccountView `json:"accounts"`
	SelectedID string               `json:"selected_id,omitempty"`
}

// ListAccounts handles GET /accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	list, err := h.accounts.List()
	if err != nil {
		h.writeError(rw, r, err)
		return
	}
	resp := AccountsResponse{Accounts: make([]models.AccountView, 0, len(list))}
	for _, a := range list {
		resp.Accounts = append(resp.Accounts, a.Public())
	}
	if sel, err := h.accounts.Selected(); err == nil {
		resp.SelectedID = sel.ID
	}
	rw.Success(resp)
}

// AddAccountRequest is the body of POST /accounts.
type AddAccountRequest struct {
	Name              string `json:"name"`
	Credential        string `json:"credential"`
	FulfillmentCenter string `json:"fulfillment_center"`
}

// AddAccount handles POST /accounts.
func (h *Handler) AddAccount(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req AddAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest("invalid JSON body: " + err.Error())
		return
	}
	acct, err := h.accounts.Add(req.Name, req.Credential, req.FulfillmentCenter)
	if err != nil {
		h.writeError(rw, r, err)
		return
	}
	h.log.Info(acct.ID, "Added account "+acct.Name)
	rw.Created(acct.Public())
}

// GetAccount handles GET /accounts/{id}.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	acct, err := h.accounts.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(rw, r, err)
		return
	}
	rw.Success(acct.Public())
}

// RemoveAccount handles DELETE /accounts/{id}. Cached inventory and the
// truth upload of the account are discarded with it.
func (h *Handler) RemoveAccount(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")
	acct, err := h.accounts.Get(id)
	if err != nil {
		h.writeError(rw, r, err)
		return
	}
	if err := h.accounts.Remove(id); err != nil {
		h.writeError(rw, r, err)
		return
	}
	if err := h.syncer.Forget(id); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("account_id", id).Msg("Failed to discard cached account data")
	}
	h.log.Info("", "Removed account "+acct.Name)
	rw.NoContent()
}

// SelectAccount handles POST /accounts/{id}/select.
func (h *Handler) SelectAccount(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")
	if err := h.accounts.Select(id); err != nil {
		h.writeError(rw, r, err)
		return
	}
	acct, err := h.accounts.Get(id)
	if err != nil {
		h.writeError(rw, r, err)
		return
	}
	rw.Success(acct.Public())
}

// ValidationResponse is the body of POST /accounts/{id}/validate.
type ValidationResponse struct {
	Valid bool `json:"valid"`
}

// ValidateAccount handles POST /accounts/{id}/validate.
func (h *Handler) ValidateAccount(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ok, err := h.syncer.ValidateAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(rw, r, err)
		return
	}
	rw.Success(ValidationResponse{Valid: ok})
}

// InventoryResponse is a snapshot plus the items under the low stock
// threshold.
type InventoryResponse struct {
	models.Snapshot
	LowStock []models.RemoteItem `json:"low_stock"`
}

// GetInventory handles GET /accounts/{id}/inventory. refresh=true forces a
// fetch from the remote.
func (h *Handler) GetInventory(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	snap, err := h.syncer.Inventory(r.Context(), chi.URLParam(r, "id"), boolParam(r.URL.Query(), "refresh"))
	if err != nil {
		h.writeError(rw, r, err)
		return
	}
	threshold := sync.DefaultLowStockThreshold
	if v, err := strconv.Atoi(r.URL.Query().Get("threshold")); err == nil && v >= 0 {
		threshold = v
	}
	rw.Success(InventoryResponse{Snapshot: snap, LowStock: inventory.LowStockItems(snap.Items, threshold)})
}

// GetTruth handles GET /accounts/{id}/truth.
func (h *Handler) GetTruth(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	items, err := h.syncer.Truth(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(rw, r, err)
		return
	}
	rw.Success(items)
}

// TruthUploadResponse is the body of PUT /accounts/{id}/truth.
type TruthUploadResponse struct {
	Items int `json:"items"`
}

// PutTruth handles PUT /accounts/{id}/truth. The body is the CSV export.
func (h *Handler) PutTruth(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	items, err := csvsource.Parse(http.MaxBytesReader(w, r.Body, MaxCSVBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rw.Error(http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "CSV upload too large")
			return
		}
		rw.BadRequest(err.Error())
		return
	}
	if err := h.syncer.SetTruth(chi.URLParam(r, "id"), items); err != nil {
		h.writeError(rw, r, err)
		return
	}
	rw.Success(TruthUploadResponse{Items: len(items)})
}

// SyncRequest is the optional body of POST /accounts/{id}/sync. An empty
// SKU list runs a full pass.
type SyncRequest struct {
	SKUs []string `json:"skus"`
}

// SyncResponse summarizes a finished pass.
type SyncResponse struct {
	sync.PassResult
	Counts map[string]int `json:"counts"`
}

// Sync handles POST /accounts/{id}/sync.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req SyncRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			rw.BadRequest("invalid JSON body: " + err.Error())
			return
		}
	}

	id := chi.URLParam(r, "id")
	var (
		result sync.PassResult
		err    error
	)
	if len(req.SKUs) > 0 {
		result, err = h.syncer.PartialSync(r.Context(), id, req.SKUs)
	} else {
		result, err = h.syncer.FullSync(r.Context(), id)
	}
	if err != nil {
		h.writeError(rw, r, err)
		return
	}
	rw.Success(SyncResponse{PassResult: result, Counts: OutcomeCounts(result)})
}

// OutcomeCounts tallies a pass by outcome kind.
func OutcomeCounts(result sync.PassResult) map[string]int {
	counts := make(map[string]int, len(models.OutcomeKinds))
	for _, k := range models.OutcomeKinds {
		counts[string(k)] = result.Count(k)
	}
	return counts
}

// CompareResponse lists differences between truth and remote.
type CompareResponse struct {
	Diffs   []models.DiffEntry `json:"diffs"`
	Summary sync.DiffSummary   `json:"summary"`
}

// Compare handles GET /accounts/{id}/compare.
func (h *Handler) Compare(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	diffs, err := h.syncer.Compare(r.Context(), chi.URLParam(r, "id"), boolParam(r.URL.Query(), "refresh"))
	if err != nil {
		h.writeError(rw, r, err)
		return
	}
	if diffs == nil {
		diffs = []models.DiffEntry{}
	}
	rw.Success(CompareResponse{Diffs: diffs, Summary: sync.Summarize(diffs)})
}

// CheckAll handles POST /check-all.
func (h *Handler) CheckAll(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	summaries, err := h.syncer.CheckAllAccounts(r.Context())
	if err != nil {
		h.writeError(rw, r, err)
		return
	}
	rw.Success(summaries)
}

// ActionRequest is the body of POST /actions.
type ActionRequest struct {
	Text string `json:"text"`
}

// Action handles POST /actions: the text is scanned for an action token
// and the action is executed.
func (h *Handler) Action(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req ActionRequest
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest("invalid JSON body: " + err.Error())
		return
	}
	reply, err := h.actions.Handle(r.Context(), req.Text)
	if err != nil {
		h.writeError(rw, r, err)
		return
	}
	rw.Success(reply)
}

// Activity handles GET /activity. limit caps the number of entries.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			rw.BadRequest("limit must be a non-negative integer")
			return
		}
		limit = n
	}
	rw.Success(h.log.Entries(limit))
}

// ActivityStream upgrades to a websocket streaming activity entries and
// sync_completed notifications.
func (h *Handler) ActivityStream(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		NewResponseWriter(w, r).ServiceUnavailable("activity stream disabled")
		return
	}
	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	client := activity.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}

func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin accepts same-host origins and the configured CORS
// origins. Requests without an Origin header are rejected.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range h.corsOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// writeError maps domain errors onto HTTP statuses.
func (h *Handler) writeError(rw *ResponseWriter, r *http.Request, err error) {
	var verr *validation.RequestValidationError
	switch {
	case errors.Is(err, accounts.ErrAccountNotFound):
		rw.NotFound(err.Error())
	case errors.Is(err, accounts.ErrNoSelection):
		rw.NotFound(err.Error())
	case errors.Is(err, accounts.ErrDuplicateAccount):
		rw.Conflict(err.Error())
	case errors.As(err, &verr):
		rw.ValidationError(verr.Error(), verr.Fields)
	case errors.Is(err, inventory.ErrTruthNotFound):
		rw.Error(http.StatusConflict, ErrCodeNoTruth, err.Error())
	case errors.Is(err, csvsource.ErrTooFewLines),
		errors.Is(err, csvsource.ErrMissingSKUColumn),
		errors.Is(err, csvsource.ErrMissingQuantityColumn):
		rw.BadRequest(err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		rw.ServiceUnavailable("request canceled")
	default:
		if apiErr, ok := vinoshipper.AsAPIError(err); ok {
			if apiErr.Kind == vinoshipper.KindCircuitOpen {
				rw.ServiceUnavailable(apiErr.Message)
				return
			}
			rw.ExternalServiceError(apiErr.Message, apiErr.StatusCode)
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		rw.InternalError("internal error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBytes))
	return dec.Decode(v)
}

func boolParam(q url.Values, name string) bool {
	v, err := strconv.ParseBool(q.Get(name))
	return err == nil && v
}
