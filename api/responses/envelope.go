package responses

// Success wraps every 2xx body as {"data": ...}.
type Success struct {
	Data any `json:"data"`
}

// Problem is the client-safe view of a failed request.
type Problem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Failure wraps errors as {"error": ...}.
type Failure struct {
	Error Problem `json:"error"`
}

// CheckoutFailure is the checkout endpoints' shape, {"success": false, "error": ...}.
type CheckoutFailure struct {
	Success bool    `json:"success"`
	Error   Problem `json:"error"`
}
