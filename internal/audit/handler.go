package audit

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler exposes the audit trail over HTTP. Read-only: the trail is written
// by the services that talk to the gateway, never through this surface.
type Handler struct {
	recorder *Recorder
}

func NewHandler(recorder *Recorder) *Handler {
	return &Handler{recorder: recorder}
}

// RegisterRoutes binds the audit routes to the given Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/audit", h.QueryEntries)
}

// QueryEntries handles GET /audit?card_number=&action=.
func (h *Handler) QueryEntries(c echo.Context) error {
	f := Filter{
		CardNumber: c.QueryParam("card_number"),
		Action:     Action(c.QueryParam("action")),
	}

	entries, err := h.recorder.Query(c.Request().Context(), f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if entries == nil {
		entries = []*Entry{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  entries,
		"total": len(entries),
	})
}
