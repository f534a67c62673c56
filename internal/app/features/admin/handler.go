// internal/app/features/admin/handler.go
package admin

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/mindmatrix/cohorthub/internal/app/features/shared"
	studentstore "github.com/mindmatrix/cohorthub/internal/app/store/students"
	"github.com/mindmatrix/cohorthub/internal/app/system/auditlog"
	"github.com/mindmatrix/cohorthub/internal/app/system/orgs"
	"github.com/mindmatrix/cohorthub/internal/app/system/timeouts"
	"github.com/mindmatrix/cohorthub/internal/app/system/verifier"
	"github.com/mindmatrix/cohorthub/internal/domain/models"
	"go.uber.org/zap"
)

// Handler serves the admin API: stats, overrides, registry management,
// and broadcasts. Every route is guarded by the admin token.
type Handler struct {
	Verifier *verifier.Verifier
	Students *studentstore.Store
	Audit    *auditlog.Logger
	Orgs     *orgs.Set
	Log      *zap.Logger
}

// NewHandler constructs an admin Handler.
func NewHandler(v *verifier.Verifier, students *studentstore.Store, audit *auditlog.Logger, orgSet *orgs.Set, logger *zap.Logger) *Handler {
	return &Handler{Verifier: v, Students: students, Audit: audit, Orgs: orgSet, Log: logger}
}

// actor identifies the admin behind a request for the audit trail. The
// gateway forwards the operator's handle; absent that we still record
// that an admin acted.
func actor(r *http.Request) string {
	if a := strings.TrimSpace(r.Header.Get("X-Actor")); a != "" {
		return a
	}
	return "admin"
}

// HandleStats handles GET /admin/stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	stats, err := h.Verifier.Stats(ctx)
	if err != nil {
		shared.VerifierError(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, stats)
}

type forceVerifyRequest struct {
	MemberID string `json:"member_id"`
	Email    string `json:"email"`
}

// HandleForceVerify handles POST /admin/force-verify: binds a member to
// an email as verified without a code, provisioning as usual.
func (h *Handler) HandleForceVerify(w http.ResponseWriter, r *http.Request) {
	var req forceVerifyRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.Error(w, http.StatusBadRequest, "bad_request", "Invalid JSON body.")
		return
	}
	if strings.TrimSpace(req.MemberID) == "" || strings.TrimSpace(req.Email) == "" {
		shared.Error(w, http.StatusBadRequest, "bad_request", "member_id and email are required.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	res, err := h.Verifier.ForceVerify(ctx, actor(r), req.MemberID, req.Email)
	if err != nil {
		shared.VerifierError(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, map[string]any{
		"status":      "verified",
		"member_id":   res.Verification.MemberID,
		"email":       res.Verification.Email,
		"course_role": res.Key.CourseRole,
		"cohort_role": res.Key.CohortRole,
	})
}

type unverifyRequest struct {
	MemberID string `json:"member_id"`
	Email    string `json:"email"`
}

// HandleUnverify handles POST /admin/unverify: releases a verified
// binding by member id or by email.
func (h *Handler) HandleUnverify(w http.ResponseWriter, r *http.Request) {
	var req unverifyRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.Error(w, http.StatusBadRequest, "bad_request", "Invalid JSON body.")
		return
	}
	memberID := strings.TrimSpace(req.MemberID)
	email := strings.TrimSpace(req.Email)
	if memberID == "" && email == "" {
		shared.Error(w, http.StatusBadRequest, "bad_request", "member_id or email is required.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	var err error
	if memberID != "" {
		err = h.Verifier.Unverify(ctx, actor(r), memberID)
	} else {
		err = h.Verifier.UnverifyByEmail(ctx, actor(r), email)
	}
	if err != nil {
		shared.VerifierError(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, map[string]string{"status": "unverified"})
}

// HandleLookup handles GET /admin/lookup?member_id=…|email=….
func (h *Handler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	memberID := strings.TrimSpace(r.URL.Query().Get("member_id"))
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if memberID == "" && email == "" {
		shared.Error(w, http.StatusBadRequest, "bad_request", "member_id or email query parameter is required.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	res, err := h.Verifier.Lookup(ctx, memberID, email)
	if err != nil {
		shared.VerifierError(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, res)
}

type addStudentRequest struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	Organization string `json:"organization"`
	Program      string `json:"program"`
	Cohort       string `json:"cohort"`
}

// HandleAddStudent handles POST /admin/students: adds one student to the
// registry.
func (h *Handler) HandleAddStudent(w http.ResponseWriter, r *http.Request) {
	var req addStudentRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.Error(w, http.StatusBadRequest, "bad_request", "Invalid JSON body.")
		return
	}
	for _, f := range []string{req.Email, req.Name, req.Organization, req.Program, req.Cohort} {
		if strings.TrimSpace(f) == "" {
			shared.Error(w, http.StatusBadRequest, "bad_request",
				"email, name, organization, program and cohort are all required.")
			return
		}
	}
	if !h.Orgs.Supported(req.Organization) {
		shared.Error(w, http.StatusUnprocessableEntity, "unsupported_organization",
			"Organization "+strings.ToUpper(strings.TrimSpace(req.Organization))+" is not in the supported set.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	st, err := h.Students.Add(ctx, models.Student{
		Email:        req.Email,
		FullName:     req.Name,
		Organization: req.Organization,
		Program:      req.Program,
		Cohort:       req.Cohort,
	})
	if err != nil {
		if errors.Is(err, studentstore.ErrDuplicateEmail) {
			shared.Error(w, http.StatusConflict, "duplicate_email",
				"A student with this email is already registered.")
			return
		}
		shared.VerifierError(w, h.Log, err)
		return
	}

	h.Audit.StudentAdded(ctx, actor(r), st.Email, st.Organization)
	shared.JSON(w, http.StatusCreated, st)
}

type listStudentsResponse struct {
	Students []models.Student `json:"students"`
	Total    int64            `json:"total"`
	Limit    int64            `json:"limit"`
	Offset   int64            `json:"offset"`
}

// HandleListStudents handles GET /admin/students with optional
// organization filter and limit/offset paging.
func (h *Handler) HandleListStudents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	org := strings.TrimSpace(q.Get("organization"))

	limit := int64(50)
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	offset := int64(0)
	if raw := q.Get("offset"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n >= 0 {
			offset = n
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	students, err := h.Students.List(ctx, org, limit, offset)
	if err != nil {
		shared.VerifierError(w, h.Log, err)
		return
	}
	total, err := h.Students.Count(ctx, org)
	if err != nil {
		shared.VerifierError(w, h.Log, err)
		return
	}
	if students == nil {
		students = []models.Student{}
	}
	shared.JSON(w, http.StatusOK, listStudentsResponse{
		Students: students, Total: total, Limit: limit, Offset: offset,
	})
}

type broadcastRequest struct {
	Organization string `json:"organization"`
	Program      string `json:"program"`
	Message      string `json:"message"`
}

// HandleBroadcast handles POST /admin/broadcast: posts one message to a
// program's announcements channel.
func (h *Handler) HandleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.Error(w, http.StatusBadRequest, "bad_request", "Invalid JSON body.")
		return
	}
	if strings.TrimSpace(req.Organization) == "" || strings.TrimSpace(req.Program) == "" ||
		strings.TrimSpace(req.Message) == "" {
		shared.Error(w, http.StatusBadRequest, "bad_request",
			"organization, program and message are required.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	channel, err := h.Verifier.Broadcast(ctx, actor(r), req.Organization, req.Program, req.Message)
	if err != nil {
		if errors.Is(err, verifier.ErrNotFound) {
			shared.Error(w, http.StatusNotFound, "no_audience",
				"No verified members in that program yet; there is no channel to post to.")
			return
		}
		shared.VerifierError(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, map[string]string{
		"status":  "sent",
		"channel": channel,
	})
}
