// Package api exposes the calendar core over HTTP for the UI: window
// queries with day-view layout, event CRUD, drag reschedule, and the sync
// trigger/status surface.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"plancal/internal/layout"
	"plancal/internal/models"
	"plancal/internal/recur"
	"plancal/internal/store"
	syncer "plancal/internal/sync"
	"plancal/internal/window"
)

// Server wires the core services behind a gin router. All sync-path
// failures degrade to a "notice" field in the response; only validation
// errors block a mutation.
type Server struct {
	logger      *slog.Logger
	store       store.Store
	reconciler  *syncer.Reconciler
	scheduler   *syncer.Scheduler
	rescheduler *syncer.Rescheduler
	weekStart   time.Weekday
	layoutCfg   layout.Config
	location    *time.Location
	dragSnap    time.Duration
	engine      *gin.Engine

	// now is swappable for tests.
	now func() time.Time
}

// NewServer builds the HTTP server around the injected services.
func NewServer(logger *slog.Logger, st store.Store, rec *syncer.Reconciler, sched *syncer.Scheduler,
	resched *syncer.Rescheduler, weekStart time.Weekday, layoutCfg layout.Config, loc *time.Location,
	dragSnap time.Duration) *Server {
	if loc == nil {
		loc = time.UTC
	}
	s := &Server{
		logger:      logger,
		store:       st,
		reconciler:  rec,
		scheduler:   sched,
		rescheduler: resched,
		weekStart:   weekStart,
		layoutCfg:   layoutCfg,
		location:    loc,
		dragSnap:    dragSnap,
		now:         time.Now,
	}
	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.registerRoutes()
	return s
}

// Handler returns the router for http.Server.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) registerRoutes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := s.engine.Group("/api")
	apiGroup.GET("/events", s.listEvents)
	apiGroup.POST("/events", s.createEvent)
	apiGroup.PATCH("/events/:id", s.updateEvent)
	apiGroup.DELETE("/events/:id", s.deleteEvent)
	apiGroup.POST("/events/:id/reschedule", s.rescheduleEvent)
	apiGroup.POST("/sync", s.syncNow)
	apiGroup.GET("/sync/status", s.syncStatus)
}

type occurrenceDTO struct {
	EventID string    `json:"eventId"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

func (s *Server) listEvents(c *gin.Context) {
	view := window.View(c.DefaultQuery("view", string(window.ViewWeek)))
	if !view.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown view"})
		return
	}
	anchor := s.now().In(s.location)
	if raw := c.Query("anchor"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "anchor must be RFC3339"})
			return
		}
		anchor = parsed.In(s.location)
	}

	win := window.Resolve(anchor, view, s.weekStart)
	events, err := s.store.Query(c.Request.Context(), win.Start, win.End)
	if err != nil {
		s.fail(c, err)
		return
	}
	occurrences, err := recur.ExpandAll(events, win)
	if err != nil {
		s.fail(c, err)
		return
	}

	occs := make([]occurrenceDTO, len(occurrences))
	for i, o := range occurrences {
		occs[i] = occurrenceDTO{EventID: o.EventID, Start: o.Start, End: o.End}
	}

	resp := gin.H{
		"view":        view,
		"window":      gin.H{"start": win.Start, "end": win.End},
		"events":      events,
		"occurrences": occs,
	}

	// Day view also carries render geometry and the current-time marker.
	if view == window.ViewDay {
		items := make([]layout.Item, len(occurrences))
		for i, o := range occurrences {
			items[i] = layout.Item{ID: o.EventID, Start: o.Start, End: o.End}
		}
		resp["layout"] = layout.Day(items, win.Start, s.layoutCfg)
		if top, ok := layout.NowMarker(s.now().In(s.location), win.Start, s.layoutCfg); ok {
			resp["nowMarker"] = gin.H{"top": top}
		}
	}
	c.JSON(http.StatusOK, resp)
}

type eventRequest struct {
	Title        *string   `json:"title"`
	Description  *string   `json:"description"`
	Location     *string   `json:"location"`
	Guests       *[]string `json:"guests"`
	NotifyBefore *int      `json:"notifyBefore"`
	Attachments  *[]string `json:"attachments"`
	StartTime    *time.Time `json:"startTime"`
	EndTime      *time.Time `json:"endTime"`
	AllDay       *bool      `json:"isAllDay"`
	Repeat       *string    `json:"repeat"`
	Color        *string    `json:"color"`
}

func (r *eventRequest) apply(ev *models.CalendarEvent) {
	if r.Title != nil {
		ev.Title = *r.Title
	}
	if r.Description != nil {
		ev.Description = *r.Description
	}
	if r.Location != nil {
		ev.Location = *r.Location
	}
	if r.Guests != nil {
		ev.Guests = *r.Guests
	}
	if r.NotifyBefore != nil {
		ev.NotifyBefore = r.NotifyBefore
	}
	if r.Attachments != nil {
		ev.Attachments = *r.Attachments
	}
	if r.StartTime != nil {
		ev.StartTime = *r.StartTime
	}
	if r.EndTime != nil {
		ev.EndTime = *r.EndTime
	}
	if r.AllDay != nil {
		ev.AllDay = *r.AllDay
	}
	if r.Repeat != nil {
		ev.Repeat = models.Repeat(*r.Repeat)
	}
	if r.Color != nil {
		ev.Color = models.Color(*r.Color)
	}
}

func (s *Server) createEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var ev models.CalendarEvent
	req.apply(&ev)

	created, err := s.store.Create(c.Request.Context(), &ev)
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := gin.H{"event": created}
	// A connected provider gets the new event mirrored outward; a failed
	// push leaves the event local and only produces a notice.
	if s.reconciler.Connected() {
		linked, pushErr := s.reconciler.MirrorCreate(c.Request.Context(), created)
		if pushErr != nil {
			s.logger.Warn("event created locally, mirror failed", "id", created.ID, "error", pushErr)
			resp["notice"] = "created locally; remote mirror pending"
		} else {
			resp["event"] = linked
		}
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) updateEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ev, err := s.store.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if ev.Deleted {
		s.fail(c, models.ErrNotFound)
		return
	}
	req.apply(ev)

	updated, err := s.store.Update(c.Request.Context(), ev, true)
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := gin.H{"event": updated}
	if updated.Remote() {
		if pushErr := s.reconciler.PushUpdate(c.Request.Context(), updated); pushErr != nil {
			s.logger.Warn("event updated locally, push failed", "id", updated.ID, "error", pushErr)
			resp["notice"] = "updated locally; remote propagation pending"
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) deleteEvent(c *gin.Context) {
	id := c.Param("id")
	ev, err := s.store.GetByID(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.store.SoftDelete(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}

	resp := gin.H{"deleted": true}
	if ev.Remote() {
		if pushErr := s.reconciler.PushDelete(c.Request.Context(), ev); pushErr != nil {
			s.logger.Warn("event deleted locally, push failed", "id", id, "error", pushErr)
			resp["notice"] = "deleted locally; remote propagation pending"
		}
	}
	c.JSON(http.StatusOK, resp)
}

type rescheduleRequest struct {
	Start time.Time `json:"start" binding:"required"`
}

func (s *Server) rescheduleEvent(c *gin.Context) {
	var req rescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// The endpoint is the drop end of a drag: the requested start is snapped
	// to the configured grid before the move applies.
	session := s.rescheduler.BeginDrag(c.Param("id"), s.dragSnap)
	session.MoveTo(req.Start)
	moved, err := session.Commit(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": moved})
}

func (s *Server) syncNow(c *gin.Context) {
	err := s.scheduler.SyncNow(c.Request.Context())
	switch {
	case errors.Is(err, syncer.ErrSyncInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		// Sync failures are advisory; local state is untouched.
		c.JSON(http.StatusOK, gin.H{"synced": false, "notice": err.Error(), "status": s.scheduler.Status()})
	default:
		c.JSON(http.StatusOK, gin.H{"synced": true, "status": s.scheduler.Status()})
	}
}

func (s *Server) syncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.scheduler.Status())
}

// fail maps core errors onto HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
	default:
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
