package httptransport

type PeekResponse struct {
	MessageID string `json:"message_id"`
	Document  string `json:"document"`
}

type DequeueResponse struct {
	Success bool `json:"success"`
}

type MessageCountResponse struct {
	Count int `json:"count"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
