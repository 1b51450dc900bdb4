// Package httpapi exposes the dashboard REST surface. Responses use a
// {success, count, data} envelope; read endpoints degrade to an empty
// success rather than erroring when the store is unreachable.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/monsoonwatch/flood-risk-service/internal/adapter/postgres"
	"github.com/monsoonwatch/flood-risk-service/internal/config"
	"github.com/monsoonwatch/flood-risk-service/internal/domain"
	"github.com/monsoonwatch/flood-risk-service/internal/incident"
)

// LiveState is the dispatcher's in-memory snapshot, always available even
// when the store is down.
type LiveState interface {
	Wards() []domain.Ward
	Ward(id string) (domain.Ward, bool)
	HighRisk() []domain.Ward
	Alerts() []domain.Alert
	AlertsForWard(id string) []domain.Alert
	Statistics() domain.WardStatistics
	Status() (source string, lastRefresh time.Time)
	ForceRefresh()
}

// WardStore is the persistent ward query and CRUD surface. May be nil.
type WardStore interface {
	List(ctx context.Context, filter postgres.WardFilter) ([]domain.Ward, error)
	GetByID(ctx context.Context, id string) (domain.Ward, error)
	HighRisk(ctx context.Context) ([]domain.Ward, error)
	Statistics(ctx context.Context) (domain.WardStatistics, error)
	Create(ctx context.Context, ward domain.Ward) error
	Update(ctx context.Context, ward domain.Ward) error
	Delete(ctx context.Context, id string) error
}

// IncidentIntake files and lists incident reports.
type IncidentIntake interface {
	File(ctx context.Context, report incident.Report) (domain.Incident, error)
	Recent() []domain.Incident
}

// IncidentStore is the persistent incident query surface. May be nil; the
// in-memory feed answers then.
type IncidentStore interface {
	Recent(ctx context.Context, limit int) ([]domain.Incident, error)
}

// Server serves the REST API.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine

	state         LiveState
	store         WardStore
	incidents     IncidentIntake
	incidentStore IncidentStore
	feedCap       int
	thresholds    domain.Thresholds

	logger *slog.Logger
}

// NewServer builds the router and wires all routes.
func NewServer(cfg *config.Config, state LiveState, store WardStore, incidents IncidentIntake, incidentStore IncidentStore, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		httpServer: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      engine,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		engine:        engine,
		state:         state,
		store:         store,
		incidents:     incidents,
		incidentStore: incidentStore,
		feedCap:       cfg.IncidentFeedCap,
		thresholds: domain.Thresholds{
			CriticalRatio:           cfg.CriticalRatio,
			AlertRatio:              cfg.AlertRatio,
			MPICritical:             cfg.MPICriticalScore,
			MPIAlert:                cfg.MPIAlertScore,
			DefaultFailureThreshold: cfg.DefaultFailureThreshold,
		},
		logger: logger,
	}

	engine.GET("/health", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api")
	{
		api.GET("/wards", s.handleListWards)
		api.POST("/wards", s.handleCreateWard)
		api.GET("/wards/statistics", s.handleStatistics)
		api.GET("/wards/high-risk", s.handleHighRisk)
		api.GET("/wards/zone/:zone", s.handleWardsByZone)
		api.GET("/wards/:id", s.handleGetWard)
		api.PUT("/wards/:id", s.handleUpdateWard)
		api.DELETE("/wards/:id", s.handleDeleteWard)

		api.GET("/alerts", s.handleListAlerts)
		api.GET("/alerts/ward/:id", s.handleWardAlerts)

		api.GET("/incidents", s.handleListIncidents)
		api.POST("/incidents", s.handleReportIncident)

		api.POST("/refresh", s.handleForceRefresh)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the router, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

type envelope struct {
	Success bool   `json:"success"`
	Count   *int   `json:"count,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respondList[T any](c *gin.Context, items []T) {
	if items == nil {
		items = []T{}
	}
	n := len(items)
	c.JSON(http.StatusOK, envelope{Success: true, Count: &n, Data: items})
}

func respondOne(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Success: true, Data: data})
}

func respondError(c *gin.Context, status int, msg string) {
	c.JSON(status, envelope{Success: false, Error: msg})
}

func (s *Server) handleHealth(c *gin.Context) {
	source, lastRefresh := s.state.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"data_source":  source,
		"demo_mode":    source == "demo",
		"last_refresh": lastRefresh,
	})
}

// handleListWards serves from the store when configured, degrading to an
// empty success if it errors. Without a store the live snapshot answers.
func (s *Server) handleListWards(c *gin.Context) {
	filter, err := parseWardFilter(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if s.store == nil {
		respondList(c, filterLive(s.state.Wards(), filter))
		return
	}

	wards, err := s.store.List(c.Request.Context(), filter)
	if err != nil {
		s.logger.Warn("ward store unavailable", "error", err)
		respondList(c, []domain.Ward{})
		return
	}
	respondList(c, wards)
}

func (s *Server) handleGetWard(c *gin.Context) {
	id := c.Param("id")
	if ward, ok := s.state.Ward(id); ok {
		respondOne(c, http.StatusOK, ward)
		return
	}
	if s.store != nil {
		ward, err := s.store.GetByID(c.Request.Context(), id)
		if err == nil {
			respondOne(c, http.StatusOK, ward)
			return
		}
		if !errors.Is(err, postgres.ErrWardNotFound) {
			s.logger.Warn("ward store unavailable", "error", err)
		}
	}
	respondError(c, http.StatusNotFound, "ward not found")
}

func (s *Server) handleHighRisk(c *gin.Context) {
	if s.store != nil {
		wards, err := s.store.HighRisk(c.Request.Context())
		if err == nil {
			respondList(c, wards)
			return
		}
		s.logger.Warn("ward store unavailable", "error", err)
	}
	respondList(c, s.state.HighRisk())
}

func (s *Server) handleWardsByZone(c *gin.Context) {
	zone := c.Param("zone")
	if s.store != nil {
		wards, err := s.store.List(c.Request.Context(), postgres.WardFilter{Zone: zone})
		if err == nil {
			respondList(c, wards)
			return
		}
		s.logger.Warn("ward store unavailable", "error", err)
	}
	respondList(c, filterLive(s.state.Wards(), postgres.WardFilter{Zone: zone}))
}

func (s *Server) handleStatistics(c *gin.Context) {
	if s.store != nil {
		stats, err := s.store.Statistics(c.Request.Context())
		if err == nil {
			respondOne(c, http.StatusOK, stats)
			return
		}
		s.logger.Warn("ward store unavailable", "error", err)
	}
	respondOne(c, http.StatusOK, s.state.Statistics())
}

func (s *Server) handleCreateWard(c *gin.Context) {
	ward, ok := s.bindWard(c)
	if !ok {
		return
	}
	if s.store == nil {
		respondError(c, http.StatusServiceUnavailable, "ward store not configured")
		return
	}
	if err := s.store.Create(c.Request.Context(), ward); err != nil {
		respondError(c, http.StatusInternalServerError, "creating ward failed")
		return
	}
	respondOne(c, http.StatusCreated, ward)
}

func (s *Server) handleUpdateWard(c *gin.Context) {
	ward, ok := s.bindWard(c)
	if !ok {
		return
	}
	ward.ID = c.Param("id")
	if s.store == nil {
		respondError(c, http.StatusServiceUnavailable, "ward store not configured")
		return
	}
	err := s.store.Update(c.Request.Context(), ward)
	if errors.Is(err, postgres.ErrWardNotFound) {
		respondError(c, http.StatusNotFound, "ward not found")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "updating ward failed")
		return
	}
	respondOne(c, http.StatusOK, ward)
}

func (s *Server) handleDeleteWard(c *gin.Context) {
	if s.store == nil {
		respondError(c, http.StatusServiceUnavailable, "ward store not configured")
		return
	}
	err := s.store.Delete(c.Request.Context(), c.Param("id"))
	if errors.Is(err, postgres.ErrWardNotFound) {
		respondError(c, http.StatusNotFound, "ward not found")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "deleting ward failed")
		return
	}
	respondOne(c, http.StatusOK, gin.H{"deleted": true})
}

// bindWard decodes a ward payload and recomputes the risk fields so tier and
// score can never be submitted out of step with the rainfall figures.
func (s *Server) bindWard(c *gin.Context) (domain.Ward, bool) {
	var ward domain.Ward
	if err := c.ShouldBindJSON(&ward); err != nil {
		respondError(c, http.StatusBadRequest, "invalid ward payload")
		return domain.Ward{}, false
	}
	if ward.ID == "" && c.Param("id") == "" {
		respondError(c, http.StatusBadRequest, "ward id is required")
		return domain.Ward{}, false
	}
	if ward.Name == "" {
		respondError(c, http.StatusBadRequest, "ward name is required")
		return domain.Ward{}, false
	}

	cls := domain.Classify(domain.RainfallReading{
		Current:          ward.CurrentRainfall,
		Forecast3h:       ward.ForecastRainfall3h,
		FailureThreshold: ward.FailureThreshold,
	}, nil, s.thresholds)
	ward.RiskLevel = cls.Level
	ward.PreparednessScore = cls.Score
	ward.LastUpdated = time.Now().UTC()
	return ward, true
}

func (s *Server) handleListAlerts(c *gin.Context) {
	respondList(c, s.state.Alerts())
}

func (s *Server) handleWardAlerts(c *gin.Context) {
	respondList(c, s.state.AlertsForWard(c.Param("id")))
}

func (s *Server) handleListIncidents(c *gin.Context) {
	if s.incidentStore != nil {
		incidents, err := s.incidentStore.Recent(c.Request.Context(), s.feedCap)
		if err == nil {
			respondList(c, incidents)
			return
		}
		s.logger.Warn("incident store unavailable", "error", err)
	}
	respondList(c, s.incidents.Recent())
}

func (s *Server) handleReportIncident(c *gin.Context) {
	var report incident.Report
	if err := c.ShouldBindJSON(&report); err != nil {
		respondError(c, http.StatusBadRequest, "invalid incident payload")
		return
	}

	filed, err := s.incidents.File(c.Request.Context(), report)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	respondOne(c, http.StatusCreated, filed)
}

func (s *Server) handleForceRefresh(c *gin.Context) {
	s.state.ForceRefresh()
	respondOne(c, http.StatusAccepted, gin.H{"scheduled": true})
}
