// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig handles framework-level settings (HTTP ports, TLS,
// logging level, request body limits). AppConfig is everything specific
// to this service: the MongoDB connection, the supported organizations,
// the SMTP accounts that deliver verification codes, and the tokens that
// guard the two API surfaces.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connection pool size
	MongoMinPoolSize uint64 // Min connection pool size

	// SiteName appears in email subjects and bodies.
	SiteName string

	// Supported organizations as "CODE=Display Name" pairs, comma
	// separated. Emails resolving to organizations outside this set are
	// rejected before any code is sent.
	Organizations string

	// API tokens. MemberToken guards /api (presented by the chat
	// gateway), AdminToken guards /admin. Empty disables the check in
	// dev; ValidateConfig refuses empty tokens in prod.
	MemberToken string
	AdminToken  string

	// Bot gateway resource API (categories, channels, roles).
	GatewayBaseURL string
	GatewayToken   string

	// Verification code settings
	CodeExpiry     time.Duration // How long an issued code stays valid
	ResendCooldown time.Duration // Minimum gap between codes per member

	// Email/SMTP configuration. SMTPAccounts, when set, lists rotating
	// "user:pass" credentials sharing SMTPHost/SMTPPort; otherwise the
	// single SMTPUser/SMTPPass account is used.
	MailSMTPHost        string
	MailSMTPPort        int
	MailSMTPUser        string
	MailSMTPPass        string
	MailSMTPAccounts    string
	MailSwitchThreshold int
	MailFrom            string
	MailFromName        string

	// Audit logging destinations ('all', 'db', 'log', 'off')
	AuditLogVerify string
	AuditLogAdmin  string
}
