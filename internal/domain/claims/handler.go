package claims

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/simrs/payerlink/internal/audit"
	"github.com/simrs/payerlink/internal/payer"
	"github.com/simrs/payerlink/internal/platform/auth"
)

// Handler exposes the claims operations over HTTP.
type Handler struct {
	service  *Service
	recorder *audit.Recorder
}

func NewHandler(service *Service, recorder *audit.Recorder) *Handler {
	return &Handler{service: service, recorder: recorder}
}

// RegisterRoutes binds the claims routes to the given Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/eligibility/verify", h.Verify)
	g.POST("/claims", h.Submit)
	g.DELETE("/claims/:id", h.Cancel)
	g.POST("/claims/:id/override", h.Override)
}

// scoped binds the audit recorder to the authenticated user for this request.
func (h *Handler) scoped(c echo.Context) *audit.Recorder {
	ctx := c.Request().Context()
	return h.recorder.For(auth.UserIDFromContext(ctx), auth.UserNameFromContext(ctx))
}

// httpStatusFor maps a classified failure to the status this API answers
// with. Gateway credential problems are this server's fault, not the
// caller's, hence 502 rather than 401.
func httpStatusFor(e *payer.PayerError) int {
	switch e.Type {
	case payer.TypeValidation:
		return http.StatusUnprocessableEntity
	case payer.TypeNotFound:
		return http.StatusNotFound
	case payer.TypeAuthorization:
		return http.StatusForbidden
	case payer.TypeBusinessLogic:
		return http.StatusConflict
	case payer.TypeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

// renderError writes the classified failure as a JSON error body. Non-payer
// errors are request validation problems and come back as 400s.
func renderError(c echo.Context, err error) error {
	var perr *payer.PayerError
	if errors.As(err, &perr) {
		return c.JSON(httpStatusFor(perr), newErrorResponse(perr))
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

// Verify handles POST /eligibility/verify.
func (h *Handler) Verify(c echo.Context) error {
	var req VerifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.service.Verify(c.Request().Context(), h.scoped(c), &req)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Submit handles POST /claims.
func (h *Handler) Submit(c echo.Context) error {
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.service.Submit(c.Request().Context(), h.scoped(c), &req)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(http.StatusCreated, result)
}

// Cancel handles DELETE /claims/:id.
func (h *Handler) Cancel(c echo.Context) error {
	claimID := c.Param("id")
	reason := c.QueryParam("reason")
	if err := h.service.Cancel(c.Request().Context(), h.scoped(c), claimID, reason); err != nil {
		return renderError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Override handles POST /claims/:id/override.
func (h *Handler) Override(c echo.Context) error {
	var req OverrideRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	entry, err := h.service.Override(c.Request().Context(), h.scoped(c), "claim:"+c.Param("id"), req.Reason)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(http.StatusCreated, entry)
}
