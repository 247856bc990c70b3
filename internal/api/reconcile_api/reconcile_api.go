package reconcile_api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/merchline/matchbox/internal/models"
	"github.com/merchline/matchbox/internal/services/reconcile"
	"github.com/merchline/matchbox/internal/storage/pgorders"
)

type Service interface {
	Stats(ctx context.Context) (models.MappingStats, error)
	ListMappings(ctx context.Context, f pgorders.MappingFilters) (*reconcile.ListMappingsResult, error)
	ListUnmapped(ctx context.Context, limit, offset int) (*reconcile.ListUnmappedResult, error)
	CreateMapping(ctx context.Context, actor *string, in reconcile.CreateMappingInput) (*models.OrderMapping, error)
	UpdateMapping(ctx context.Context, actor *string, id uuid.UUID, patch pgorders.MappingPatch) (*models.OrderMapping, error)
	DeleteMapping(ctx context.Context, actor *string, id uuid.UUID) error
	AutoMap(ctx context.Context) (*reconcile.AutoMapResult, error)
}

type ReconcileAPI struct {
	svc Service
}

func New(svc Service) *ReconcileAPI {
	return &ReconcileAPI{svc: svc}
}

func (a *ReconcileAPI) Routes(r chi.Router) {
	r.Get("/v1/reconcile/stats", a.getStats)
	r.Get("/v1/reconcile/mappings", a.listMappings)
	r.Post("/v1/reconcile/mappings", a.createMapping)
	r.Patch("/v1/reconcile/mappings/{id}", a.updateMapping)
	r.Delete("/v1/reconcile/mappings/{id}", a.deleteMapping)
	r.Get("/v1/reconcile/unmapped", a.listUnmapped)
	r.Post("/v1/reconcile/automap", a.autoMap)
}

func (a *ReconcileAPI) getStats(w http.ResponseWriter, r *http.Request) {
	st, err := a.svc.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *ReconcileAPI) listMappings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := pgorders.MappingFilters{
		Classification: q.Get("classification"),
		Search:         q.Get("search"),
		Limit:          intParam(q.Get("limit"), 50),
		Offset:         intParam(q.Get("offset"), 0),
	}

	if v := q.Get("from"); v != "" {
		t, err := parseDateParam(v, false)
		if err != nil {
			writeErrorMsg(w, http.StatusBadRequest, "invalid from date")
			return
		}
		f.DateFrom = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := parseDateParam(v, true)
		if err != nil {
			writeErrorMsg(w, http.StatusBadRequest, "invalid to date")
			return
		}
		f.DateTo = &t
	}

	res, err := a.svc.ListMappings(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}

	out := listMappingsJSON{
		Mappings:   make([]mappingDetailJSON, 0, len(res.Mappings)),
		TotalCount: res.TotalCount,
		Stats:      res.Stats,
	}
	for _, d := range res.Mappings {
		out.Mappings = append(out.Mappings, toMappingDetailJSON(d))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *ReconcileAPI) listUnmapped(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := a.svc.ListUnmapped(r.Context(), intParam(q.Get("limit"), 50), intParam(q.Get("offset"), 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListUnmappedJSON(res))
}

type createMappingRequest struct {
	FulfillmentOrderID int64  `json:"fulfillmentOrderId"`
	StorefrontOrderID  *int64 `json:"storefrontOrderId,omitempty"`
	Classification     string `json:"classification"`
	Notes              string `json:"notes,omitempty"`
}

func (a *ReconcileAPI) createMapping(w http.ResponseWriter, r *http.Request) {
	var req createMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid json body")
		return
	}

	m, err := a.svc.CreateMapping(r.Context(), actorFrom(r), reconcile.CreateMappingInput{
		FulfillmentOrderID: req.FulfillmentOrderID,
		StorefrontOrderID:  req.StorefrontOrderID,
		Classification:     req.Classification,
		Notes:              req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMappingJSON(m))
}

type updateMappingRequest struct {
	StorefrontOrderID    *int64  `json:"storefrontOrderId,omitempty"`
	ClearStorefrontOrder bool    `json:"clearStorefrontOrder,omitempty"`
	Classification       *string `json:"classification,omitempty"`
	Notes                *string `json:"notes,omitempty"`
}

func (a *ReconcileAPI) updateMapping(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid mapping id")
		return
	}

	var req updateMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid json body")
		return
	}

	m, err := a.svc.UpdateMapping(r.Context(), actorFrom(r), id, pgorders.MappingPatch{
		StorefrontOrderID:    req.StorefrontOrderID,
		ClearStorefrontOrder: req.ClearStorefrontOrder,
		Classification:       req.Classification,
		Notes:                req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMappingJSON(m))
}

func (a *ReconcileAPI) deleteMapping(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid mapping id")
		return
	}
	if err := a.svc.DeleteMapping(r.Context(), actorFrom(r), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *ReconcileAPI) autoMap(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.AutoMap(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// actorFrom reads the acting admin identity. The identity provider sits in
// front of this service; an absent header means a system-generated action.
func actorFrom(r *http.Request) *string {
	if v := r.Header.Get("X-Admin-User"); v != "" {
		return &v
	}
	return nil
}

func intParam(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// parseDateParam accepts RFC3339 or a plain date. A date-only "to" bound is
// pushed to end-of-day so the range stays inclusive.
func parseDateParam(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Millisecond)
	}
	return t.UTC(), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pgorders.ErrNotFound):
		writeErrorMsg(w, http.StatusNotFound, err.Error())
	case errors.Is(err, pgorders.ErrAlreadyMapped):
		writeErrorMsg(w, http.StatusConflict, err.Error())
	case errors.Is(err, reconcile.ErrInvalidClassification),
		errors.Is(err, reconcile.ErrEmptyPatch):
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
	default:
		writeErrorMsg(w, http.StatusInternalServerError, err.Error())
	}
}
