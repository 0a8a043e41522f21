package dto

type ChatRequest struct {
	Message   string `json:"message" validate:"required,min=1,max=4000"`
	SessionId string `json:"session_id" validate:"omitempty,uuid4"`
}
