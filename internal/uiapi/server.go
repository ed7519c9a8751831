package uiapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/awaistahir/energy-life/internal/engine"
	"github.com/awaistahir/energy-life/internal/log"
	"github.com/awaistahir/energy-life/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const version = "1.0.0"

type Server struct {
	store     *store.Store
	estimator *engine.Estimator
	// tariff setting overrides from configuration, applied on top of stored settings
	overrides map[string]string
	now       func() time.Time
}

func NewServer(st *store.Store, est *engine.Estimator, overrides map[string]string) *Server {
	if est == nil {
		est = engine.NewEstimator(engine.DefaultHeuristics())
	}
	return &Server{
		store:     st,
		estimator: est,
		overrides: overrides,
		now:       time.Now,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(requestLogger)

	// CORS for local development
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/catalog", s.handleCatalog)
		r.Get("/household", s.handleGetHousehold)
		r.Put("/household", s.handleUpdateHousehold)
		r.Post("/household/layout", s.handleLayout)
		r.Put("/rooms/{id}", s.handleUpdateRoom)
		r.Post("/estimate", s.handleEstimate)
		r.Post("/estimate/preview", s.handlePreview)
		r.Get("/history", s.handleHistory)
		r.Get("/tariff", s.handleGetTariff)
		r.Put("/tariff", s.handleUpdateTariff)
	})

	return gziphandler.GzipHandler(r)
}

// requestLogger puts a request-scoped logger into the context
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		l := log.Ctx(ctx).With(slog.String("request_id", middleware.GetReqID(ctx)))
		next.ServeHTTP(w, r.WithContext(log.With(ctx, l)))
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	_, err := s.store.GetHousehold(store.DefaultHouseholdID)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"version":     version,
		"initialized": err == nil,
	})
}

type roomTypeInfo struct {
	Type       engine.RoomType `json:"type"`
	Appliances []string        `json:"appliances"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	rooms := make([]roomTypeInfo, 0, len(engine.RoomTypes))
	for _, t := range engine.RoomTypes {
		rooms = append(rooms, roomTypeInfo{Type: t, Appliances: engine.RoomDefaultAppliances(t)})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"appliances": engine.Catalog(),
		"roomTypes":  rooms,
	})
}

func (s *Server) handleGetHousehold(w http.ResponseWriter, r *http.Request) {
	household, err := s.store.EnsureHousehold(store.DefaultHouseholdID)
	if err != nil {
		s.internalError(w, r, "loading household", err)
		return
	}

	respondJSON(w, http.StatusOK, household)
}

type householdUpdate struct {
	Name    string          `json:"name"`
	Profile *engine.Profile `json:"profile"`
	State   *engine.State   `json:"state"`
}

func (s *Server) handleUpdateHousehold(w http.ResponseWriter, r *http.Request) {
	var req householdUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	household, err := s.store.EnsureHousehold(store.DefaultHouseholdID)
	if err != nil {
		s.internalError(w, r, "loading household", err)
		return
	}
	if req.Name != "" {
		household.Name = req.Name
	}
	if req.Profile != nil {
		household.Profile = *req.Profile
	}
	if req.State != nil {
		household.State = *req.State
	}

	if err := s.store.SaveHousehold(household); err != nil {
		s.internalError(w, r, "saving household", err)
		return
	}

	respondJSON(w, http.StatusOK, household)
}

type layoutRequest struct {
	Rooms map[engine.RoomType]int `json:"rooms"`
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	var req layoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for t, n := range req.Rooms {
		if !engine.ValidRoomType(t) {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown room type %q", t))
			return
		}
		if n < 0 {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("negative room count for %q", t))
			return
		}
	}

	household, err := s.store.EnsureHousehold(store.DefaultHouseholdID)
	if err != nil {
		s.internalError(w, r, "loading household", err)
		return
	}
	household.State.Rooms = engine.BuildLayout(req.Rooms)
	if err := s.store.SaveHousehold(household); err != nil {
		s.internalError(w, r, "saving household", err)
		return
	}

	log.Ctx(r.Context()).Info("house layout rebuilt", slog.Int("rooms", len(household.State.Rooms)))
	respondJSON(w, http.StatusOK, household)
}

type roomUpdate struct {
	Label      string                            `json:"label"`
	Appliances map[string]engine.ApplianceFields `json:"appliances"`
}

func (s *Server) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req roomUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	household, err := s.store.EnsureHousehold(store.DefaultHouseholdID)
	if err != nil {
		s.internalError(w, r, "loading household", err)
		return
	}
	room, ok := household.State.Rooms[id]
	if !ok || room == nil {
		respondError(w, http.StatusNotFound, "room not found")
		return
	}

	if req.Label != "" {
		room.Label = req.Label
	}
	room.Configure(req.Appliances)
	if err := s.store.SaveHousehold(household); err != nil {
		s.internalError(w, r, "saving household", err)
		return
	}

	respondJSON(w, http.StatusOK, room)
}

// tariff returns the stored settings with configuration overrides applied
func (s *Server) tariff() (engine.TariffSettings, error) {
	t, err := s.store.GetTariffSettings()
	if err != nil {
		return t, err
	}
	if len(s.overrides) > 0 {
		t.Apply(s.overrides)
	}
	return t, nil
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	household, err := s.store.EnsureHousehold(store.DefaultHouseholdID)
	if err != nil {
		s.internalError(w, r, "loading household", err)
		return
	}
	t, err := s.tariff()
	if err != nil {
		s.internalError(w, r, "loading tariff", err)
		return
	}

	result, err := s.estimator.Estimate(household.Input(), t)
	if errors.Is(err, engine.ErrInvalidTariff) {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, r, "estimating", err)
		return
	}

	rec, err := s.store.SaveEstimate(household.ID, s.now(), result)
	if err != nil {
		s.internalError(w, r, "saving estimate", err)
		return
	}

	log.Ctx(r.Context()).Info("estimate saved",
		slog.String("id", rec.ID),
		slog.Float64("kwh_net", result.KWhNet),
		slog.String("recommended", string(result.RecommendedTariff)),
	)
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var in engine.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	t, err := s.tariff()
	if err != nil {
		s.internalError(w, r, "loading tariff", err)
		return
	}

	result, err := s.estimator.Estimate(&in, t)
	if errors.Is(err, engine.ErrInvalidTariff) {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, r, "estimating", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 30
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := s.store.ListEstimates(store.DefaultHouseholdID, limit)
	if err != nil {
		s.internalError(w, r, "listing estimates", err)
		return
	}

	respondJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetTariff(w http.ResponseWriter, r *http.Request) {
	t, err := s.tariff()
	if err != nil {
		s.internalError(w, r, "loading tariff", err)
		return
	}

	respondJSON(w, http.StatusOK, t.Map())
}

// handleUpdateTariff accepts a partial map of setting keys; values may be
// numbers or numeric strings.
func (s *Server) handleUpdateTariff(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var body map[string]interface{}
	if err := dec.Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	known := make(map[string]bool, len(engine.SettingKeys))
	for _, k := range engine.SettingKeys {
		known[k] = true
	}
	updates := make(map[string]string, len(body))
	for k, v := range body {
		if !known[k] {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown setting %q", k))
			return
		}
		str := fmt.Sprint(v)
		if _, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("setting %q must be numeric", k))
			return
		}
		updates[k] = str
	}

	t, err := s.store.GetTariffSettings()
	if err != nil {
		s.internalError(w, r, "loading tariff", err)
		return
	}
	t.Apply(updates)

	if err := s.store.SaveTariffSettings(t); err != nil {
		if errors.Is(err, engine.ErrInvalidTariff) {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.internalError(w, r, "saving tariff", err)
		return
	}

	respondJSON(w, http.StatusOK, t.Map())
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	log.Ctx(r.Context()).Error(msg, slog.Any("error", err))
	respondError(w, http.StatusInternalServerError, msg+": "+err.Error())
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, `{"error":"encoding response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
