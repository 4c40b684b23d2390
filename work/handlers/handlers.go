// Package handlers exposes the catalog over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kptv-catalog/work/catalog"
	"kptv-catalog/work/logger"
	"kptv-catalog/work/middleware"
	"kptv-catalog/work/types"
)

// Handler binds the HTTP API to an aggregator.
type Handler struct {
	agg *catalog.Aggregator
}

func New(agg *catalog.Aggregator) *Handler {
	return &Handler{agg: agg}
}

// Router builds the API surface.
func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/catalog/{type}", h.handleCatalog).Methods(http.MethodGet)
	r.HandleFunc("/epg/{id}/current", h.handleEpgCurrent).Methods(http.MethodGet)
	r.HandleFunc("/epg/{id}/next", h.handleEpgNext).Methods(http.MethodGet)
	r.HandleFunc("/refresh", h.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/preferences", h.handleGetPreferences).Methods(http.MethodGet)
	r.HandleFunc("/preferences", h.handlePutPreferences).Methods(http.MethodPut)
	r.HandleFunc("/playlists", h.handleListPlaylists).Methods(http.MethodGet)
	r.HandleFunc("/playlists/{id}", h.handleDeletePlaylist).Methods(http.MethodDelete)
	r.HandleFunc("/series/{id}", h.handleSeriesDetail).Methods(http.MethodGet)
	r.HandleFunc("/vod/{id}", h.handleVodDetail).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return middleware.Gzip(r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	var streamType types.StreamType
	switch mux.Vars(r)["type"] {
	case "live":
		streamType = types.StreamTypeLive
	case "vod":
		streamType = types.StreamTypeVod
	case "series":
		streamType = types.StreamTypeSeries
	default:
		writeError(w, http.StatusBadRequest, "unknown catalog type, want live, vod or series")
		return
	}
	entries := h.agg.Catalog(streamType)
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) channelID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "channel id must be numeric")
		return 0, false
	}
	return id, true
}

func (h *Handler) handleEpgCurrent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.channelID(w, r)
	if !ok {
		return
	}
	program, found := h.agg.EPG().CurrentProgram(r.Context(), id)
	if !found {
		writeError(w, http.StatusNotFound, "no program airing")
		return
	}
	writeJSON(w, http.StatusOK, program)
}

func (h *Handler) handleEpgNext(w http.ResponseWriter, r *http.Request) {
	id, ok := h.channelID(w, r)
	if !ok {
		return
	}
	program, found := h.agg.EPG().NextProgram(r.Context(), id)
	if !found {
		writeError(w, http.StatusNotFound, "no upcoming program")
		return
	}
	writeJSON(w, http.StatusOK, program)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	results := h.agg.IngestAll(r.Context())
	h.agg.EPG().Refresh(r.Context(), h.agg.LiveChannelIDs())
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.agg.Preferences())
}

func (h *Handler) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var prefs types.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid preferences payload: "+err.Error())
		return
	}
	h.agg.SetPreferences(prefs)
	writeJSON(w, http.StatusOK, h.agg.Preferences())
}

func (h *Handler) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.agg.Playlists(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if playlists == nil {
		playlists = []*types.Playlist{}
	}
	writeJSON(w, http.StatusOK, playlists)
}

func (h *Handler) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	if err := h.agg.DeletePlaylist(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSeriesDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "series id must be numeric")
		return
	}
	detail, err := h.agg.SeriesDetail(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) handleVodDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "vod id must be numeric")
		return
	}
	detail, err := h.agg.VodDetail(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, detail)
}
