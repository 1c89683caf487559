package security

// Service names under which the application publishes the shared
// security components.
const (
	CredentialsService = "security.credentials"
	RedactorService    = "security.redactor"
	AuditService       = "security.audit"
	RateLimiterService = "security.ratelimiter"
	URLFilterService   = "security.urlfilter"
)
