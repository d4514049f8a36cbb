package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/uhra/uhra/internal/domain/records"
	"github.com/uhra/uhra/internal/platform/auth"
)

const recordPathPrefix = "/api/records/"

// Audit logs every health record access attempt under /api/records/,
// allowed or not, with the asserted requester and the target patient.
// Denied attempts log at warn level.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !strings.HasPrefix(c.Request().URL.Path, recordPathPrefix) {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}

			evt := logger.Info()
			if status == http.StatusUnauthorized || status == http.StatusForbidden {
				evt = logger.Warn()
			}

			ctx := c.Request().Context()
			rid, _ := c.Get("request_id").(string)
			evt.
				Str("type", "record_access").
				Str("request_id", rid).
				Str("user_id", auth.UserIDFromContext(ctx)).
				Str("user_role", auth.RoleFromContext(ctx)).
				Str("patient_id", records.PathPatientID(c)).
				Str("remote_ip", c.RealIP()).
				Int("status", status).
				Bool("granted", status == http.StatusOK).
				Msg("record_access")

			return err
		}
	}
}
