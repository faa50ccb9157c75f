package llm

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/ahmadnazif/AiChatBackendDemo/internal/models"

	"github.com/cloudwego/eino/schema"
)

// ToSchemaRole maps a wire-level sender onto the model role.
func ToSchemaRole(sender models.ChatSender) schema.RoleType {
	switch sender {
	case models.SenderUser:
		return schema.User
	case models.SenderAssistant:
		return schema.Assistant
	default:
		return schema.User
	}
}

// ToChatSender maps a model role back onto the wire-level sender.
func ToChatSender(role schema.RoleType) models.ChatSender {
	switch role {
	case schema.User:
		return models.SenderUser
	case schema.Assistant:
		return models.SenderAssistant
	default:
		return models.SenderAssistant
	}
}

// BuildMessages assembles the ordered model input: prior history first
// (earliest to latest), then the latest prompt.
func BuildMessages(history []models.ChatMsg, latest *models.ChatMsg) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(history)+1)
	for _, m := range history {
		msgs = append(msgs, &schema.Message{
			Role:    ToSchemaRole(m.Sender),
			Content: m.Text,
		})
	}
	if latest != nil {
		msgs = append(msgs, &schema.Message{
			Role:    ToSchemaRole(latest.Sender),
			Content: latest.Text,
		})
	}
	return msgs
}

// BuildFileMessage assembles a single prompt carrying binary content as a
// data URL part alongside the text.
func BuildFileMessage(prompt *models.ChatMsg, data []byte, mediaType string) *schema.Message {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(data))

	parts := []schema.ChatMessagePart{
		{Type: schema.ChatMessagePartTypeText, Text: prompt.Text},
	}
	if strings.HasPrefix(mediaType, "image/") {
		parts = append(parts, schema.ChatMessagePart{
			Type: schema.ChatMessagePartTypeImageURL,
			ImageURL: &schema.ChatMessageImageURL{
				URL:      dataURL,
				MIMEType: mediaType,
			},
		})
	} else {
		parts = append(parts, schema.ChatMessagePart{
			Type: schema.ChatMessagePartTypeFileURL,
			FileURL: &schema.ChatMessageFileURL{
				URL:      dataURL,
				MIMEType: mediaType,
			},
		})
	}

	return &schema.Message{
		Role:         ToSchemaRole(prompt.Sender),
		MultiContent: parts,
	}
}
