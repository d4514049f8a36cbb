package records

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/uhra/uhra/internal/platform/auth"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes mounts the record routes on api, which is expected to be
// the /api group with auth.HeaderIdentity installed.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/records/patient/:id", h.GetPatientRecord)
}

// ErrorBody is the JSON body of every non-200 record response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var (
	bodyUnauthorized = ErrorBody{Error: "Unauthorized", Message: "Missing x-user-id or x-user-role header (login first)"}
	bodyInvalidRole  = ErrorBody{Error: "Forbidden", Message: "Invalid role"}
	bodyNotOwner     = ErrorBody{Error: "Forbidden", Message: "Patients can only view their own health record"}
	bodyNotFound     = ErrorBody{Error: "Not found", Message: "No health record found for this patient"}
	bodyServerError  = ErrorBody{Error: "Server error", Message: "Could not load health records"}
)

func (h *Handler) GetPatientRecord(c echo.Context) error {
	patientID := PathPatientID(c)

	ctx := c.Request().Context()
	rec, err := h.svc.GetPatientRecord(ctx, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx), patientID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSONBlob(http.StatusOK, rec)
}

// PathPatientID returns the :id parameter decoded exactly once. net/http
// already decodes URL.Path and echo matches on it unless the request has a
// distinct RawPath, in which case the parameter is still escaped.
func PathPatientID(c echo.Context) string {
	id := c.Param("id")
	if c.Request().URL.RawPath == "" {
		return id
	}
	if unescaped, err := url.PathUnescape(id); err == nil {
		return unescaped
	}
	return id
}

func (h *Handler) writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return c.JSON(http.StatusUnauthorized, bodyUnauthorized)
	case errors.Is(err, ErrInvalidRole):
		return c.JSON(http.StatusForbidden, bodyInvalidRole)
	case errors.Is(err, ErrNotOwner):
		return c.JSON(http.StatusForbidden, bodyNotOwner)
	case errors.Is(err, ErrNotFound):
		return c.JSON(http.StatusNotFound, bodyNotFound)
	}

	rid, _ := c.Get("request_id").(string)
	h.logger.Error().Err(err).
		Str("request_id", rid).
		Str("source", h.svc.Source()).
		Msg("failed to load health records")
	return c.JSON(http.StatusInternalServerError, bodyServerError)
}
