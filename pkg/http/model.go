package http

// APIResponse is the envelope of every ops API response.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string `json:"code" example:"ERR_LTE"`
	Field   string `json:"field,omitempty" example:"limit"`
	Message string `json:"message" example:"limit must be at most 10000"`
}

// ListDataResponse is a list plus the size of the full set.
type ListDataResponse struct {
	Rows  interface{} `json:"rows"`
	Total int64       `json:"total"`
}
