package models

import "time"

// ResponseBase is the uniform outcome wrapper for mutating operations.
type ResponseBase struct {
	IsSuccess bool   `json:"isSuccess"`
	Message   string `json:"message"`
}

// SingleChatResponse is pushed to the caller after a one-shot generation.
type SingleChatResponse struct {
	Username        string        `json:"username"`
	ConnectionID    string        `json:"connectionId"`
	RequestMessage  ChatMsg       `json:"requestMessage"`
	ResponseMessage ChatMsg       `json:"responseMessage"`
	Duration        time.Duration `json:"duration"`
	ModelID         string        `json:"modelId"`
}

// ChainedChatResponse is pushed to the caller after a generation with history.
type ChainedChatResponse struct {
	Username         string        `json:"username"`
	ConnectionID     string        `json:"connectionId"`
	PreviousMessages []ChatMsg     `json:"previousMessages"`
	ResponseMessage  ChatMsg       `json:"responseMessage"`
	Duration         time.Duration `json:"duration"`
	ModelID          string        `json:"modelId"`
}

// StreamingChatResponse is one incremental unit of model output. All chunks
// of one generation share a StreamingID; exactly the last chunk has
// HasFinished set.
type StreamingChatResponse struct {
	StreamingID string    `json:"streamingId"`
	ModelID     string    `json:"modelId"`
	HasFinished bool      `json:"hasFinished"`
	Message     ChatMsg   `json:"message"`
	CreatedAt   time.Time `json:"createdAt"`
}
