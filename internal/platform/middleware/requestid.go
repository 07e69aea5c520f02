package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/samasante/amina/internal/platform/compliance"
)

const RequestIDHeader = "X-Request-ID"

// maxRequestIDLength bounds client-supplied ids before they reach the logs
// and the audit table.
const maxRequestIDLength = 128

// RequestID reuses the caller's X-Request-ID or generates a UUID, echoes it
// in the response and stores it under "request_id". The id, client IP and
// user agent are also put on the request context for audit entries.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if rid == "" || len(rid) > maxRequestIDLength {
				rid = uuid.NewString()
			}
			c.Set("request_id", rid)
			c.Response().Header().Set(RequestIDHeader, rid)

			req := c.Request()
			ctx := compliance.WithRequestInfo(req.Context(), compliance.RequestInfo{
				IPAddress: c.RealIP(),
				UserAgent: req.UserAgent(),
				RequestID: rid,
			})
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}
