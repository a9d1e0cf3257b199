package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/montanon/ensenia-hackaton-sub000/internal/realtime"
	"github.com/montanon/ensenia-hackaton-sub000/internal/tts"
)

// New constructs the echo server with all routes wired.
func New(handler *realtime.Handler, coordinator *tts.Coordinator) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/ws/:session_id", handler.Serve)

	// Synthesized audio referenced by audio_ready messages when no external
	// object store is configured.
	e.GET("/audio/:id", func(c echo.Context) error {
		data, ok := coordinator.Lookup(c.Param("id"))
		if !ok {
			return c.String(http.StatusNotFound, "audio not found or expired")
		}
		return c.Blob(http.StatusOK, "audio/L16", data)
	})

	return e
}
