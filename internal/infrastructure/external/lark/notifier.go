package lark

import (
	"context"
	"encoding/json"
	"fmt"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/port"
)

// Notifier delivers transition notifications as Lark direct messages. The
// recipient ref is the approver's Lark open_id.
type Notifier struct {
	sdk    *SDKClient
	logger *zap.Logger
}

// NewNotifier creates a new Lark notifier
func NewNotifier(sdk *SDKClient, logger *zap.Logger) *Notifier {
	return &Notifier{
		sdk:    sdk,
		logger: logger,
	}
}

// Send implements port.Notifier.
func (n *Notifier) Send(ctx context.Context, msg *port.Notification) error {
	if msg.RecipientRef == "" {
		return fmt.Errorf("recipient cannot be empty")
	}

	content, err := json.Marshal(map[string]string{"text": msg.Body})
	if err != nil {
		return fmt.Errorf("failed to marshal message content: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType("open_id").
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(msg.RecipientRef).
			MsgType("text").
			Content(string(content)).
			Build()).
		Build()

	resp, err := n.sdk.GetClient().Im.Message.Create(ctx, req)
	if err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("recipient", msg.RecipientRef),
			zap.Int64("document_id", msg.DocumentID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		n.logger.Error("API returned failure",
			zap.String("recipient", msg.RecipientRef),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}

	n.logger.Info("Notification sent",
		zap.String("message_id", messageID),
		zap.String("recipient", msg.RecipientRef),
		zap.String("event", msg.EventType))

	return nil
}

// Verify interface compliance
var _ port.Notifier = (*Notifier)(nil)
