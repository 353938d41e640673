package httptransport

type IntakeAcceptedResponse struct {
	CorrelationID string `json:"correlation_id"`
}

type IntakeErrorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Target  string `json:"target,omitempty"`
}

type IntakeRejectedResponse struct {
	Errors []IntakeErrorDTO `json:"errors"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
