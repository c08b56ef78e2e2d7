package auth

// Scopes recognised by the reporting service.
const (
	ScopeReportsRead   = "reports:read"
	ScopeReportsWrite  = "reports:write"
	ScopeCheckInsWrite = "checkins:write"
)
