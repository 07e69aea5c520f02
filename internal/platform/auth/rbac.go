package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	RoleSuperAdmin    = "super_admin"
	RoleHospitalAdmin = "hospital_admin"
	RoleDoctor        = "doctor"
	RolePatient       = "patient"
)

// Staff are the roles allowed to work on any patient of the tenant.
var Staff = []string{RoleHospitalAdmin, RoleDoctor}

// HasRole reports whether ctx's caller holds one of roles. super_admin holds
// every role.
func HasRole(ctx context.Context, roles ...string) bool {
	for _, has := range RolesFromContext(ctx) {
		if has == RoleSuperAdmin {
			return true
		}
		for _, required := range roles {
			if has == required {
				return true
			}
		}
	}
	return false
}

// RequireRole rejects callers that hold none of roles with 403.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if HasRole(c.Request().Context(), roles...) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// CanAccessPatient reports whether the caller may act on patientID. Staff may
// act on every patient, a patient only on their own record.
func CanAccessPatient(ctx context.Context, patientID int64) bool {
	if HasRole(ctx, Staff...) {
		return true
	}
	p := PrincipalFromContext(ctx)
	return p != nil && HasRole(ctx, RolePatient) && p.PatientID != 0 && p.PatientID == patientID
}

// CanActAsDoctor reports whether the caller may manage doctorID's schedule and
// documents. Hospital admins may act for every doctor.
func CanActAsDoctor(ctx context.Context, doctorID int64) bool {
	if HasRole(ctx, RoleHospitalAdmin) {
		return true
	}
	p := PrincipalFromContext(ctx)
	return p != nil && HasRole(ctx, RoleDoctor) && p.DoctorID != 0 && p.DoctorID == doctorID
}
