package api

const (
	ChatPath      = "/chat"
	AssistantPath = "/assistant"
	HealthPath    = "/healthz"
	MetricsPath   = "/metrics"

	// FormatHTML asks for a sanitized HTML rendering next to the plain reply.
	FormatHTML = "html"
)

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Reply     string `json:"reply"`
	ReplyHTML string `json:"reply_html,omitempty"`
}
