package models

// SingleChatRequest carries a one-shot prompt with no history.
type SingleChatRequest struct {
	Prompt  *ChatMsg `json:"prompt"`
	ModelID string   `json:"modelId"`
}

// ChainedChatRequest carries the prior conversation plus the latest prompt.
// PreviousMessages may be empty; Prompt is required and its text must be
// non-blank.
type ChainedChatRequest struct {
	PreviousMessages []ChatMsg `json:"previousMessages"`
	Prompt           *ChatMsg  `json:"latestMessage"`
	ModelID          string    `json:"modelId"`
}

// FileChatRequest is a single prompt with an attached binary payload.
// FileData marshals as base64 on the wire.
type FileChatRequest struct {
	FileData  []byte   `json:"fileData"`
	MediaType string   `json:"mediaType"`
	Prompt    *ChatMsg `json:"prompt"`
	ModelID   string   `json:"modelId"`
}
