package chi

// ErrorCode is the machine-readable error code in ErrorResponse.
type ErrorCode string

// ErrorCode values.
const (
	ErrorCodeBadRequest           ErrorCode = "bad_request"
	ErrorCodeUnauthorized         ErrorCode = "unauthorized"
	ErrorCodeNotFound             ErrorCode = "not_found"
	ErrorCodeQuotaExceeded        ErrorCode = "token_quota_exceeded"
	ErrorCodeProviderError        ErrorCode = "provider_error"
	ErrorCodeRetrieverUnavailable ErrorCode = "retriever_unavailable"
	ErrorCodeInternalError        ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Query string `json:"query"`
	K     *int   `json:"k,omitempty"`
}

// ContextItem is a retrieved candidate echoed back to the caller.
type ContextItem struct {
	Title  string   `json:"title"`
	Themes []string `json:"themes"`
}

// ChatResponse is the body of a successful POST /chat.
type ChatResponse struct {
	Query       string        `json:"query"`
	ChosenTitle *string       `json:"chosen_title"`
	Answer      string        `json:"answer"`
	ContextUsed []ContextItem `json:"context_used"`
}

// SearchParams are the query parameters of GET /debug/search.
type SearchParams struct {
	Q string `form:"q" json:"q"`
	K *int   `form:"k,omitempty" json:"k,omitempty"`
}

// SearchResult is one KNN hit.
type SearchResult struct {
	Title  string   `json:"title"`
	Score  float64  `json:"score"`
	Themes []string `json:"themes"`
}

// SearchResponse is the body of GET /debug/search.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// UsageParams are the query parameters of GET /usage.
type UsageParams struct {
	Period *string `form:"period,omitempty" json:"period,omitempty"`
}

// UsageResponse is the body of GET /usage.
type UsageResponse struct {
	Period          string `json:"period"`
	PeriodStart     int64  `json:"period_start"`
	PeriodEnd       int64  `json:"period_end"`
	TokensLimit     int64  `json:"tokens_limit"`
	TokensUsed      int64  `json:"tokens_used"`
	TokensRemaining int64  `json:"tokens_remaining"`
	Exhausted       bool   `json:"exhausted"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
