package response

// ErrorPayload is the JSON body middleware writes when it aborts a request.
// It matches the shape the API handlers use for their own errors.
type ErrorPayload struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// Error builds an error payload
func Error(code, message string) ErrorPayload {
	return ErrorPayload{
		Error:   message,
		Code:    code,
		Message: message,
	}
}
