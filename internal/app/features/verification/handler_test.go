// internal/app/features/verification/handler_test.go
package verification_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mindmatrix/cohorthub/internal/app/features/verification"
	studentstore "github.com/mindmatrix/cohorthub/internal/app/store/students"
	verificationstore "github.com/mindmatrix/cohorthub/internal/app/store/verifications"
	"github.com/mindmatrix/cohorthub/internal/app/system/orgs"
	"github.com/mindmatrix/cohorthub/internal/app/system/provision"
	"github.com/mindmatrix/cohorthub/internal/app/system/ratelimit"
	"github.com/mindmatrix/cohorthub/internal/app/system/verifier"
	"github.com/mindmatrix/cohorthub/internal/testutil"
	"go.uber.org/zap"
)

const testToken = "gateway-secret"

type env struct {
	router   http.Handler
	platform *testutil.FakePlatform
	sender   *testutil.FakeSender
	fixtures *testutil.Fixtures
}

func setup(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	log := zap.NewNop()

	ctx, cancel := testutil.TestContext()
	defer cancel()

	students := studentstore.New(db)
	if err := students.EnsureIndexes(ctx); err != nil {
		t.Fatalf("students.EnsureIndexes: %v", err)
	}
	verifs := verificationstore.New(db, time.Minute)
	if err := verifs.EnsureIndexes(ctx); err != nil {
		t.Fatalf("verifs.EnsureIndexes: %v", err)
	}

	set, err := orgs.Parse("VTU=Vincennes Tech")
	if err != nil {
		t.Fatalf("orgs.Parse: %v", err)
	}

	fake := testutil.NewFakePlatform()
	sender := &testutil.FakeSender{}
	limiter := ratelimit.NewIssueLimiterWithConfig(1000, time.Minute, 1000, time.Minute)

	v := verifier.New(verifier.Deps{
		Students: students,
		Verifs:   verifs,
		Prov:     provision.New(fake, log),
		Client:   fake,
		Sender:   sender,
		Orgs:     set,
		Cooldown: limiter,
		Log:      log,
	})

	h := verification.NewHandler(v, limiter, log)
	return &env{
		router:   verification.Routes(h, testToken),
		platform: fake,
		sender:   sender,
		fixtures: testutil.NewFixtures(t, db),
	}
}

func (e *env) post(t *testing.T, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Api-Token", token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestVerifyThenOTP(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	e.fixtures.CreateStudent(ctx, "asha@vtu.edu", "Asha Rao", "VTU", "Android App Development", "Nomads")

	rec := e.post(t, "/verify", map[string]string{
		"member_id": "member-1", "email": "asha@vtu.edu",
	}, testToken)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("verify status = %d, body %s", rec.Code, rec.Body.String())
	}
	code := e.sender.LastCode()
	if len(code) != 6 {
		t.Fatalf("expected a 6-digit code to be mailed, got %q", code)
	}

	rec = e.post(t, "/otp", map[string]string{
		"member_id": "member-1", "code": code,
	}, testToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("otp status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Status     string `json:"status"`
		CourseRole string `json:"course_role"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "verified" {
		t.Errorf("status = %q, want verified", resp.Status)
	}
	if resp.CourseRole != "VTU-Android App Development Intern" {
		t.Errorf("course_role = %q", resp.CourseRole)
	}
}

func TestVerify_RequiresToken(t *testing.T) {
	e := setup(t)

	rec := e.post(t, "/verify", map[string]string{
		"member_id": "member-1", "email": "asha@vtu.edu",
	}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	rec = e.post(t, "/verify", map[string]string{
		"member_id": "member-1", "email": "asha@vtu.edu",
	}, "wrong-token")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestVerify_UnknownEmail(t *testing.T) {
	e := setup(t)

	rec := e.post(t, "/verify", map[string]string{
		"member_id": "member-1", "email": "stranger@vtu.edu",
	}, testToken)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Code != "not_found" {
		t.Errorf("error code = %q, want not_found", body.Code)
	}
}

func TestVerify_MissingFields(t *testing.T) {
	e := setup(t)

	rec := e.post(t, "/verify", map[string]string{"member_id": "member-1"}, testToken)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestOTP_WrongCode(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	e.fixtures.CreateStudent(ctx, "asha@vtu.edu", "Asha Rao", "VTU", "Android App Development", "Nomads")

	rec := e.post(t, "/verify", map[string]string{
		"member_id": "member-1", "email": "asha@vtu.edu",
	}, testToken)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("verify status = %d", rec.Code)
	}

	rec = e.post(t, "/otp", map[string]string{
		"member_id": "member-1", "code": "000000",
	}, testToken)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body %s", rec.Code, rec.Body.String())
	}
	if e.platform.TotalCreates() != 0 {
		t.Errorf("wrong code must not provision anything, %d creates", e.platform.TotalCreates())
	}
}

func TestReverify_NoPending(t *testing.T) {
	e := setup(t)

	rec := e.post(t, "/reverify", map[string]string{"member_id": "member-9"}, testToken)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body %s", rec.Code, rec.Body.String())
	}
}

func TestHelp(t *testing.T) {
	e := setup(t)

	req := httptest.NewRequest(http.MethodGet, "/help", nil)
	req.Header.Set("X-Api-Token", testToken)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Steps []struct {
			Command string `json:"command"`
		} `json:"steps"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode help: %v", err)
	}
	if len(body.Steps) != 3 {
		t.Errorf("help steps = %d, want 3", len(body.Steps))
	}
}
