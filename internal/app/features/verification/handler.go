// internal/app/features/verification/handler.go
package verification

import (
	"context"
	"net/http"
	"strings"

	"github.com/mindmatrix/cohorthub/internal/app/features/shared"
	"github.com/mindmatrix/cohorthub/internal/app/system/ratelimit"
	"github.com/mindmatrix/cohorthub/internal/app/system/timeouts"
	"github.com/mindmatrix/cohorthub/internal/app/system/verifier"
	"go.uber.org/zap"
)

// Handler serves the member-facing verification API that the chat
// gateway calls on behalf of members.
type Handler struct {
	Verifier *verifier.Verifier
	Limiter  *ratelimit.IssueLimiter
	Log      *zap.Logger
}

// NewHandler constructs a verification Handler.
func NewHandler(v *verifier.Verifier, limiter *ratelimit.IssueLimiter, logger *zap.Logger) *Handler {
	return &Handler{Verifier: v, Limiter: limiter, Log: logger}
}

type verifyRequest struct {
	MemberID string `json:"member_id"`
	Email    string `json:"email"`
}

type otpRequest struct {
	MemberID string `json:"member_id"`
	Code     string `json:"code"`
}

type reverifyRequest struct {
	MemberID string `json:"member_id"`
}

type sentResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HandleVerify handles POST /api/verify: resolves the email against the
// student registry and mails a one-time code.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.Error(w, http.StatusBadRequest, "bad_request", "Invalid JSON body.")
		return
	}
	if strings.TrimSpace(req.MemberID) == "" || strings.TrimSpace(req.Email) == "" {
		shared.Error(w, http.StatusBadRequest, "bad_request", "member_id and email are required.")
		return
	}

	if ok, reason := h.Limiter.Check(ratelimit.ClientIP(r), ""); !ok {
		shared.Error(w, http.StatusTooManyRequests, "rate_limited", reason)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Verifier.Verify(ctx, req.MemberID, req.Email); err != nil {
		shared.VerifierError(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusAccepted, sentResponse{
		Status:  "code_sent",
		Message: "Check your email for a 6-digit code, then submit it here.",
	})
}

type verifiedResponse struct {
	Status       string `json:"status"`
	Organization string `json:"organization"`
	Program      string `json:"program"`
	Cohort       string `json:"cohort"`
	CourseRole   string `json:"course_role"`
	CohortRole   string `json:"cohort_role"`
}

// HandleOTP handles POST /api/otp: checks the submitted code, provisions
// the member's resources, and commits the verification.
func (h *Handler) HandleOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.Error(w, http.StatusBadRequest, "bad_request", "Invalid JSON body.")
		return
	}
	if strings.TrimSpace(req.MemberID) == "" || strings.TrimSpace(req.Code) == "" {
		shared.Error(w, http.StatusBadRequest, "bad_request", "member_id and code are required.")
		return
	}

	// Provisioning can create several platform resources; give it the
	// long budget.
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	res, err := h.Verifier.SubmitCode(ctx, req.MemberID, req.Code)
	if err != nil {
		shared.VerifierError(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, verifiedResponse{
		Status:       "verified",
		Organization: res.Verification.Organization,
		Program:      res.Verification.Program,
		Cohort:       res.Verification.Cohort,
		CourseRole:   res.Key.CourseRole,
		CohortRole:   res.Key.CohortRole,
	})
}

// HandleReverify handles POST /api/reverify: reissues a code over the
// member's outstanding verification.
func (h *Handler) HandleReverify(w http.ResponseWriter, r *http.Request) {
	var req reverifyRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.Error(w, http.StatusBadRequest, "bad_request", "Invalid JSON body.")
		return
	}
	if strings.TrimSpace(req.MemberID) == "" {
		shared.Error(w, http.StatusBadRequest, "bad_request", "member_id is required.")
		return
	}

	if ok, reason := h.Limiter.Check(ratelimit.ClientIP(r), ""); !ok {
		shared.Error(w, http.StatusTooManyRequests, "rate_limited", reason)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Verifier.Reverify(ctx, req.MemberID); err != nil {
		shared.VerifierError(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusAccepted, sentResponse{
		Status:  "code_sent",
		Message: "A new code is on its way. The old one no longer works.",
	})
}

type helpStep struct {
	Step        int    `json:"step"`
	Command     string `json:"command"`
	Description string `json:"description"`
}

// HandleHelp handles GET /api/help with the walkthrough the gateway
// relays to members.
func (h *Handler) HandleHelp(w http.ResponseWriter, r *http.Request) {
	shared.JSON(w, http.StatusOK, map[string]any{
		"steps": []helpStep{
			{Step: 1, Command: "verify <email>", Description: "Start verification with the email you registered with."},
			{Step: 2, Command: "otp <code>", Description: "Submit the 6-digit code from your email."},
			{Step: 3, Command: "reverify", Description: "Did the code expire? Request a fresh one."},
		},
		"notes": []string{
			"Codes expire after a few minutes and can only be used once.",
			"Your channels and roles are set up automatically once you are verified.",
		},
	})
}
