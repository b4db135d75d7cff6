// Package server exposes the application over a JSON HTTP API for a browser
// front end.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/rcliao/guardia-ai/internal/app"
	"github.com/rcliao/guardia-ai/internal/model"
	"github.com/rcliao/guardia-ai/internal/nav"
	"github.com/rcliao/guardia-ai/internal/session"
)

// Server serves one App.
type Server struct {
	app  *app.App
	log  zerolog.Logger
	echo *echo.Echo

	// bg outlives requests; background model calls run under it.
	bg     context.Context
	cancel context.CancelFunc
}

// New builds the router. CORS is opened for the given origins, if any.
func New(a *app.App, logger zerolog.Logger, corsOrigins ...string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	bg, cancel := context.WithCancel(context.Background())
	s := &Server{app: a, log: logger, echo: e, bg: bg, cancel: cancel}
	e.HTTPErrorHandler = s.handleError

	e.Use(recovery(logger))
	e.Use(requestID())
	e.Use(requestLogger(logger))
	if len(corsOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: corsOrigins}))
	}

	s.routes()
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.echo }

// Run listens on addr until ctx is done, then shuts down and waits for
// background model calls.
func (s *Server) Run(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("starting server")
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err, ok := <-errc:
		if ok {
			return err
		}
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.echo.Shutdown(shutdownCtx)
	s.cancel()
	s.app.Wait()
	s.log.Info().Msg("server stopped")
	return err
}

func (s *Server) routes() {
	api := s.echo.Group("/api")

	api.GET("/view", s.getView)
	api.POST("/nav/:action", s.postNav)

	api.GET("/records", s.listRecords)
	api.GET("/records/:id", s.getRecord)
	api.POST("/records/:id/select", s.selectRecord)
	api.DELETE("/records/:id", s.requestDelete)
	api.GET("/stats", s.getStats)

	api.GET("/delete", s.getPendingDelete)
	api.POST("/delete/confirm", s.confirmDelete)
	api.POST("/delete/cancel", s.cancelDelete)

	api.GET("/backup", s.getBackup)
	api.POST("/import", s.prepareImport)
	api.POST("/import/:id/confirm", s.confirmImport)
	api.DELETE("/import", s.cancelImport)

	sess := api.Group("/session")
	sess.GET("", s.getSession)
	sess.POST("/new", s.newPatient)
	sess.PATCH("/fields", s.patchFields)
	sess.PUT("/pending-items", s.putPendingItems)
	sess.POST("/pending-items/toggle", s.togglePendingItem)
	sess.POST("/save-pending", s.savePending)
	sess.POST("/finish", s.finishCase)
	sess.POST("/delete", s.requestDeleteCurrent)
	sess.POST("/analysis", s.submitAnalysis)
	sess.POST("/note", s.generateNote)
	sess.PUT("/note", s.putNote)
	sess.POST("/note/export", s.exportNote)
	sess.POST("/chat", s.startChat)
	sess.POST("/chat/messages", s.sendChat)
}

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var (
		ve *model.ValidationError
		fe *model.ImportFormatError
		he *echo.HTTPError
	)
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.As(err, &ve), errors.As(err, &fe):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrBusy),
		errors.Is(err, nav.ErrIllegalTransition),
		errors.Is(err, app.ErrNoConfirmation):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := statusFor(err)
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	if code == http.StatusInternalServerError {
		msg = "internal server error"
	}
	if c.Request().Method == http.MethodHead {
		c.NoContent(code)
		return
	}
	c.JSON(code, errorBody{Error: msg})
}
