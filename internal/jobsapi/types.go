package jobsapi

// ErrorResponse represents a structured API error.
type ErrorResponse struct {
	// Code is a machine-readable error code (e.g., "ERR_INVALID_INPUT").
	Code string `json:"code"`

	// Message is a human-readable description of the error.
	Message string `json:"message"`
}

// MembershipResponse answers a live segment membership check.
type MembershipResponse struct {
	TenantID  string `json:"tenantId"`
	SegmentID string `json:"segmentId"`
	PlayerID  string `json:"playerId"`
	Member    bool   `json:"member"`
}
