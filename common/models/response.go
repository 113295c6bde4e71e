package models

// BaseResponse is the standard JSON envelope
type BaseResponse struct {
	Data interface{} `json:"data"`
}

// ErrorResponse is the standard error envelope
type ErrorResponse struct {
	Error string `json:"error"`
	Msg   string `json:"message"`
}
