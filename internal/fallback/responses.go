package fallback

// Response represents a canned reply used when the AI provider is unavailable
type Response struct {
	Content string
	Action  string // "retry" or "contact_support"
}

var (
	timeoutResponse = Response{
		Content: "I'm taking longer than usual to respond. Please try your question again in a moment.",
		Action:  "retry",
	}

	circuitOpenResponse = Response{
		Content: "I'm temporarily unavailable due to technical difficulties. I'll be back shortly, and your documents and conversation history are safe.",
		Action:  "contact_support",
	}

	providerErrorResponse = Response{
		Content: "I couldn't reach the answer service just now. Please try again, and contact support if the problem keeps happening.",
		Action:  "retry",
	}
)

// GetTimeoutResponse is used when a provider call exceeded its deadline
func GetTimeoutResponse() Response {
	return timeoutResponse
}

// GetCircuitOpenResponse is used while the provider circuit breaker is open
func GetCircuitOpenResponse() Response {
	return circuitOpenResponse
}

// GetProviderErrorResponse is used for any other provider failure
func GetProviderErrorResponse() Response {
	return providerErrorResponse
}
