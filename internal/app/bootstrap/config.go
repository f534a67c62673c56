// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/mindmatrix/cohorthub/internal/app/system/orgs"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for CohortHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, organizations, etc.
//   - Environment variables: COHORTHUB_MONGO_URI, COHORTHUB_ORGANIZATIONS, etc.
//   - Command-line flags: --mongo_uri, --organizations, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "cohorthub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	{Name: "site_name", Default: "CohortHub", Desc: "Name used in email subjects and bodies"},
	{Name: "organizations", Default: "", Desc: "Supported organizations as 'CODE=Display Name' pairs, comma separated"},

	// API tokens
	{Name: "member_token", Default: "", Desc: "Shared token the chat gateway presents on /api (empty disables the check)"},
	{Name: "admin_token", Default: "", Desc: "Token guarding /admin (empty disables the check)"},

	// Bot gateway resource API
	{Name: "gateway_base_url", Default: "http://localhost:8090", Desc: "Base URL of the bot gateway resource API"},
	{Name: "gateway_token", Default: "", Desc: "Bot token for the gateway resource API"},

	// Verification code settings
	{Name: "code_expiry", Default: "5m", Desc: "Verification code lifetime (e.g., 5m, 90s)"},
	{Name: "resend_cooldown", Default: "1m", Desc: "Minimum gap between codes per member"},

	// Email/SMTP configuration
	{Name: "mail_smtp_host", Default: "localhost", Desc: "SMTP server host"},
	{Name: "mail_smtp_port", Default: 1025, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_smtp_accounts", Default: "", Desc: "Rotating SMTP accounts as 'user:pass' pairs, comma separated (overrides mail_smtp_user/pass)"},
	{Name: "mail_switch_threshold", Default: 100, Desc: "Sends per SMTP account before rotating to the next"},
	{Name: "mail_from", Default: "noreply@cohorthub.dev", Desc: "From email address"},
	{Name: "mail_from_name", Default: "CohortHub", Desc: "From display name"},

	// Audit logging settings
	{Name: "audit_log_verify", Default: "all", Desc: "Verification event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, COHORTHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "COHORTHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SiteName:      appValues.String("site_name"),
		Organizations: appValues.String("organizations"),

		MemberToken: appValues.String("member_token"),
		AdminToken:  appValues.String("admin_token"),

		GatewayBaseURL: appValues.String("gateway_base_url"),
		GatewayToken:   appValues.String("gateway_token"),

		CodeExpiry:     appValues.Duration("code_expiry", 5*time.Minute),
		ResendCooldown: appValues.Duration("resend_cooldown", time.Minute),

		MailSMTPHost:        appValues.String("mail_smtp_host"),
		MailSMTPPort:        appValues.Int("mail_smtp_port"),
		MailSMTPUser:        appValues.String("mail_smtp_user"),
		MailSMTPPass:        appValues.String("mail_smtp_pass"),
		MailSMTPAccounts:    appValues.String("mail_smtp_accounts"),
		MailSwitchThreshold: appValues.Int("mail_switch_threshold"),
		MailFrom:            appValues.String("mail_from"),
		MailFromName:        appValues.String("mail_from_name"),

		AuditLogVerify: appValues.String("audit_log_verify"),
		AuditLogAdmin:  appValues.String("audit_log_admin"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// CohortHub validates the MongoDB URI and the supported-organizations
// list up front, and refuses to run in prod without API tokens.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	set, err := orgs.Parse(appCfg.Organizations)
	if err != nil {
		return fmt.Errorf("invalid organizations config: %w", err)
	}
	if len(set.Codes()) == 0 {
		return fmt.Errorf("organizations must list at least one 'CODE=Display Name' pair")
	}

	if appCfg.CodeExpiry <= 0 {
		return fmt.Errorf("code_expiry must be positive")
	}

	if coreCfg.Env == "prod" {
		if appCfg.MemberToken == "" || appCfg.AdminToken == "" {
			return fmt.Errorf("member_token and admin_token are required in prod")
		}
		if appCfg.GatewayToken == "" {
			return fmt.Errorf("gateway_token is required in prod")
		}
	}

	return nil
}
