package models

// APIError is the uniform error envelope every endpoint returns on failure.
// Dependency names the upstream that failed ("tmdb" or "llm") when one did;
// TraceID correlates the response with server logs.
type APIError struct {
	Code       int    `json:"code"`
	Message    string `json:"message"`
	Hint       string `json:"hint,omitempty"`
	Dependency string `json:"dependency,omitempty"`
	TraceID    string `json:"trace_id,omitempty"`
}
