package models

// APIResponse is the envelope every endpoint returns:
// {status: "success"|"error", data?, message?}.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// SuccessResponse wraps a payload in the success envelope.
func SuccessResponse(data any) APIResponse {
	return APIResponse{Status: "success", Data: data}
}

// MessageResponse is a success envelope that carries only a message.
func MessageResponse(message string) APIResponse {
	return APIResponse{Status: "success", Message: message}
}

// ErrorResponse is the error envelope returned with 4xx/5xx codes.
func ErrorResponse(message string) APIResponse {
	return APIResponse{Status: "error", Message: message}
}
