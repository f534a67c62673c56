// internal/app/bootstrap/routes.go
package bootstrap

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	adminfeature "github.com/mindmatrix/cohorthub/internal/app/features/admin"
	healthfeature "github.com/mindmatrix/cohorthub/internal/app/features/health"
	verificationfeature "github.com/mindmatrix/cohorthub/internal/app/features/verification"
	auditstore "github.com/mindmatrix/cohorthub/internal/app/store/audit"
	studentstore "github.com/mindmatrix/cohorthub/internal/app/store/students"
	verificationstore "github.com/mindmatrix/cohorthub/internal/app/store/verifications"
	"github.com/mindmatrix/cohorthub/internal/app/system/auditlog"
	"github.com/mindmatrix/cohorthub/internal/app/system/mailer"
	"github.com/mindmatrix/cohorthub/internal/app/system/orgs"
	"github.com/mindmatrix/cohorthub/internal/app/system/platform"
	"github.com/mindmatrix/cohorthub/internal/app/system/provision"
	"github.com/mindmatrix/cohorthub/internal/app/system/ratelimit"
	"github.com/mindmatrix/cohorthub/internal/app/system/verifier"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. It assembles the stores, the platform
// client with its retry wrapper, the provisioner, the mailer, and the
// verifier, then mounts the three API surfaces:
//   - /health  for load balancers and orchestrators
//   - /api     the member verification API (gateway token)
//   - /admin   the admin API (admin token)
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.CohortHubMongoDatabase

	orgSet, err := orgs.Parse(appCfg.Organizations)
	if err != nil {
		return nil, fmt.Errorf("parse organizations: %w", err)
	}

	students := studentstore.New(db)
	verifs := verificationstore.New(db, appCfg.CodeExpiry)

	audit := auditlog.New(auditstore.New(db), logger, auditlog.Config{
		Verify: appCfg.AuditLogVerify,
		Admin:  appCfg.AuditLogAdmin,
	})

	// The gateway client is wrapped in the retrier so transient gateway
	// trouble never surfaces as a failed verification on the first blip.
	gateway := platform.NewRESTClient(appCfg.GatewayBaseURL, appCfg.GatewayToken, logger)
	client := platform.NewRetrier(gateway, platform.DefaultAttempts, platform.DefaultBackoff, logger)
	prov := provision.New(client, logger)

	accounts, err := smtpAccounts(appCfg)
	if err != nil {
		return nil, err
	}
	sender, err := mailer.NewSMTP(accounts, appCfg.MailSwitchThreshold, appCfg.SiteName, appCfg.CodeExpiry, logger)
	if err != nil {
		return nil, fmt.Errorf("mailer init: %w", err)
	}

	cooldown := ratelimit.NewIssueLimiter(appCfg.ResendCooldown)

	v := verifier.New(verifier.Deps{
		Students: students,
		Verifs:   verifs,
		Prov:     prov,
		Client:   client,
		Sender:   sender,
		Audit:    audit,
		Orgs:     orgSet,
		Cooldown: cooldown,
		Log:      logger,
	})

	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.CohortHubMongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Member verification API, called by the chat gateway
	verifyHandler := verificationfeature.NewHandler(v, cooldown, logger)
	r.Mount("/api", verificationfeature.Routes(verifyHandler, appCfg.MemberToken))

	// Admin API
	adminHandler := adminfeature.NewHandler(v, students, audit, orgSet, logger)
	r.Mount("/admin", adminfeature.Routes(adminHandler, appCfg.AdminToken))

	return r, nil
}

// smtpAccounts expands the mail configuration into the mailer's account
// list: either the rotating "user:pass" pairs from mail_smtp_accounts, or
// the single mail_smtp_user/pass account.
func smtpAccounts(appCfg AppConfig) ([]mailer.Account, error) {
	base := mailer.Account{
		Host: appCfg.MailSMTPHost,
		Port: appCfg.MailSMTPPort,
		From: formatFrom(appCfg.MailFromName, appCfg.MailFrom),
	}

	raw := strings.TrimSpace(appCfg.MailSMTPAccounts)
	if raw == "" {
		a := base
		a.Username = appCfg.MailSMTPUser
		a.Password = appCfg.MailSMTPPass
		return []mailer.Account{a}, nil
	}

	var accounts []mailer.Account
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		user, pass, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("mail_smtp_accounts entry %q is not user:pass", pair)
		}
		a := base
		a.Username = strings.TrimSpace(user)
		a.Password = pass
		accounts = append(accounts, a)
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("mail_smtp_accounts is set but contains no usable entries")
	}
	return accounts, nil
}

func formatFrom(name, addr string) string {
	if name == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", name, addr)
}
