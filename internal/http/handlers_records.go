package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"rewards/internal/cache"
	"rewards/internal/core"
	applog "rewards/internal/log"
	"rewards/internal/services"
	"rewards/internal/sources/api"
)

// RecordEditor is the part of services.RecordService the record endpoints use.
type RecordEditor interface {
	Record(ctx context.Context, resource string, id int64) (json.RawMessage, error)
	CacheStats() cache.Stats
	Region(ctx context.Context, id int64) (services.RegionView, error)
	CreateRegion(ctx context.Context, in services.RegionView) (services.RegionView, error)
	DeleteRegion(ctx context.Context, id int64) error
	AddZone(ctx context.Context, id int64, zone string) (services.RegionView, error)
	RemoveZone(ctx context.Context, id int64, zone string) (services.RegionView, error)
}

// maxRecordBody bounds request bodies of the write endpoints.
const maxRecordBody = 64 << 10

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "invalid id")
		return
	}
	raw, err := s.records.Record(r.Context(), r.PathValue("resource"), id)
	if err != nil {
		s.writeRecordError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (s *Server) handleRecordStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.records.CacheStats())
}

func (s *Server) handleRegion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "invalid id")
		return
	}
	region, err := s.records.Region(r.Context(), id)
	if err != nil {
		s.writeRecordError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, region)
}

func (s *Server) handleCreateRegion(w http.ResponseWriter, r *http.Request) {
	var in services.RegionView
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecordBody)).Decode(&in); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	region, err := s.records.CreateRegion(r.Context(), in)
	if err != nil {
		s.writeRecordError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, region)
}

func (s *Server) handleDeleteRegion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.records.DeleteRegion(r.Context(), id); err != nil {
		s.writeRecordError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddZone(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var in struct {
		Zone string `json:"zone"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecordBody)).Decode(&in); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	region, err := s.records.AddZone(r.Context(), id, in.Zone)
	if err != nil {
		s.writeRecordError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, region)
}

func (s *Server) handleRemoveZone(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "invalid id")
		return
	}
	region, err := s.records.RemoveZone(r.Context(), id, r.PathValue("zone"))
	if err != nil {
		s.writeRecordError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, region)
}

// writeRecordError maps service and upstream errors to a status. Upstream
// failures other than 404 surface as 502.
func (s *Server) writeRecordError(w http.ResponseWriter, r *http.Request, err error) {
	var se *api.StatusError
	switch {
	case errors.Is(err, services.ErrUnknownResource):
		writeJSONError(w, http.StatusNotFound, "unknown resource")
	case errors.Is(err, core.ErrMissingName), errors.Is(err, core.ErrMissingID):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrEditInProgress):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.As(err, &se) && se.StatusCode == http.StatusNotFound:
		writeJSONError(w, http.StatusNotFound, "record not found")
	default:
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Record request failed",
			applog.FieldError, err,
			applog.FieldPath, r.URL.Path)
		writeJSONError(w, http.StatusBadGateway, "upstream request failed")
	}
}
