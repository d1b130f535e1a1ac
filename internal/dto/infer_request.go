package dto

// InferRequest carries one frame as a data URL ("<mime-prefix>,<base64-payload>").
type InferRequest struct {
	Frame string `json:"frame"`
}

// ErrorResponse is the body returned by the relay gateway when the model server fails.
type ErrorResponse struct {
	Error string `json:"error"`
}
