package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/samasante/amina/internal/platform/auth"
	"github.com/samasante/amina/internal/platform/compliance"
)

// AuditedKey is set on the echo context by handlers that write their own
// audit entry, so the middleware does not persist a second one.
const AuditedKey = "audit_recorded"

// AuditEntry describes one API request that touched patient data.
type AuditEntry struct {
	UserID     string
	UserRoles  []string
	Resource   string
	PatientID  int64
	Action     string
	IPAddress  string
	UserAgent  string
	Path       string
	Method     string
	RequestID  string
	StatusCode int
	Timestamp  time.Time
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	RecordAccess(ctx context.Context, entry AuditEntry) error
}

type AuditRecorderFunc func(ctx context.Context, entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(ctx context.Context, entry AuditEntry) error {
	return f(ctx, entry)
}

// ComplianceRecorder stores middleware audit entries in the tenant's
// audit_log table, keyed on the patient the request touched.
func ComplianceRecorder(logger *compliance.AuditLogger) AuditRecorder {
	return AuditRecorderFunc(func(ctx context.Context, entry AuditEntry) error {
		e, err := compliance.NewEntry(ctx, entry.UserID, entry.Action, "patient", entry.PatientID, nil)
		if err != nil {
			return err
		}
		if e.RequestID == "" {
			e.RequestID = entry.RequestID
		}
		if e.IPAddress == "" {
			e.IPAddress = entry.IPAddress
		}
		if e.UserAgent == "" {
			e.UserAgent = entry.UserAgent
		}
		return logger.Log(ctx, e)
	})
}

// Audit logs every /api/v1 request as a "phi_access" event. Successful
// requests scoped to a patient are also handed to recorder, unless the
// handler already audited them.
func Audit(logger zerolog.Logger, recorder AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !strings.HasPrefix(req.URL.Path, "/api/v1/") {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}

			ctx := req.Context()
			entry := AuditEntry{
				UserID:     auth.UserIDFromContext(ctx),
				UserRoles:  auth.RolesFromContext(ctx),
				Resource:   resourceFromRoute(c.Path()),
				PatientID:  patientIDFromRoute(c),
				Action:     actionForMethod(req.Method),
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				Path:       req.URL.Path,
				Method:     req.Method,
				StatusCode: status,
				Timestamp:  time.Now().UTC(),
			}
			entry.RequestID, _ = c.Get("request_id").(string)

			logger.Info().
				Str("type", "phi_audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("resource", entry.Resource).
				Int64("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Int("status", entry.StatusCode).
				Msg("phi_access")

			audited, _ := c.Get(AuditedKey).(bool)
			if recorder != nil && !audited && entry.PatientID != 0 && status < http.StatusBadRequest {
				if recErr := recorder.RecordAccess(ctx, entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			return err
		}
	}
}

func actionForMethod(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "access"
	}
}

// resourceFromRoute returns the first segment after /api/v1/ of the matched
// route, e.g. "patients" for /api/v1/patients/:id/appointments.
func resourceFromRoute(route string) string {
	rest := strings.TrimPrefix(route, "/api/v1/")
	if rest == route || rest == "" {
		return "unknown"
	}
	segment, _, _ := strings.Cut(rest, "/")
	return segment
}

// patientIDFromRoute finds the patient a request is about: the :id of a
// /api/v1/patients/:id route or a patient_id query parameter.
func patientIDFromRoute(c echo.Context) int64 {
	if strings.HasPrefix(c.Path(), "/api/v1/patients/:id") {
		if id, err := strconv.ParseInt(c.Param("id"), 10, 64); err == nil && id > 0 {
			return id
		}
	}
	if id, err := strconv.ParseInt(c.QueryParam("patient_id"), 10, 64); err == nil && id > 0 {
		return id
	}
	return 0
}
