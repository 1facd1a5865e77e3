// Package websocket provides WebSocket adapters for external event sources.
// This package translates protocol-specific events into application commands.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	larkevent "github.com/larksuite/oapi-sdk-go/v3/event"
	larkdispatcher "github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/service"
	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// LarkAdapter wraps the Lark WebSocket SDK client and translates decision
// actions taken inside Lark (from the notification messages approvers
// receive) into approval service calls.
type LarkAdapter struct {
	appID     string
	appSecret string
	approvals service.ApprovalService
	logger    *zap.Logger

	wsClient *larkws.Client
	mu       sync.RWMutex
	started  bool
}

// LarkAdapterConfig holds configuration for the Lark WebSocket adapter.
type LarkAdapterConfig struct {
	AppID     string
	AppSecret string
}

// NewLarkAdapter creates a new Lark WebSocket adapter.
func NewLarkAdapter(cfg LarkAdapterConfig, approvals service.ApprovalService, logger *zap.Logger) *LarkAdapter {
	return &LarkAdapter{
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		approvals: approvals,
		logger:    logger,
	}
}

// Start initializes the WebSocket connection and begins listening for Lark
// events. This method blocks until the context is cancelled or an error
// occurs.
func (a *LarkAdapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return fmt.Errorf("adapter already started")
	}

	// Empty strings for verification token and encrypt key (not needed for
	// WebSocket mode)
	sdkDispatcher := larkdispatcher.NewEventDispatcher("", "")

	// Decision actions arrive as a customized event carrying our own payload
	sdkDispatcher.OnCustomizedEvent("approval_decision", a.handleDecisionEvent)

	a.wsClient = larkws.NewClient(
		a.appID,
		a.appSecret,
		larkws.WithEventHandler(sdkDispatcher),
	)

	a.started = true
	a.mu.Unlock()

	a.logger.Info("Starting Lark WebSocket adapter",
		zap.String("app_id", a.appID))

	// Start blocks until context is cancelled or error occurs
	if err := a.wsClient.Start(ctx); err != nil {
		a.logger.Error("Lark WebSocket client error", zap.Error(err))
		return fmt.Errorf("websocket client error: %w", err)
	}

	return nil
}

// Stop gracefully stops the WebSocket adapter.
// Note: The Lark SDK WebSocket client is stopped by cancelling the context passed to Start.
func (a *LarkAdapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return nil
	}

	a.started = false
	a.logger.Info("Lark WebSocket adapter stopped")
	return nil
}

// IsRunning returns whether the adapter is currently running.
func (a *LarkAdapter) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.started
}

// larkDecisionEvent is the payload of a decision action taken in Lark.
type larkDecisionEvent struct {
	Header struct {
		EventType string `json:"event_type"`
	} `json:"header"`
	Event struct {
		DocumentID int64  `json:"document_id"`
		UserID     string `json:"user_id"`
		Level      int    `json:"level"`
		Action     string `json:"action"`
		Comment    string `json:"comment"`
	} `json:"event"`
}

// handleDecisionEvent is called by the Lark SDK when an approver acts on a
// notification message. It translates the action into a decide call; a
// rejected command (wrong level, already decided, unauthorized) is logged and
// swallowed so the SDK does not retry it.
func (a *LarkAdapter) handleDecisionEvent(ctx context.Context, evt *larkevent.EventReq) error {
	a.logger.Debug("Received Lark event",
		zap.Int("body_length", len(evt.Body)))

	var decision larkDecisionEvent
	if err := json.Unmarshal(evt.Body, &decision); err != nil {
		a.logger.Error("Failed to parse Lark event payload",
			zap.Error(err),
			zap.String("body", string(evt.Body)))
		return fmt.Errorf("failed to parse event payload: %w", err)
	}

	if decision.Event.DocumentID == 0 || decision.Event.UserID == "" {
		a.logger.Warn("Decision event missing document or user",
			zap.String("event_type", decision.Header.EventType))
		return nil
	}

	verdict := translateAction(decision.Event.Action)
	if verdict == "" {
		a.logger.Debug("Action not translated to a verdict",
			zap.String("action", decision.Event.Action))
		return nil
	}

	_, err := a.approvals.Decide(ctx, service.DecideInput{
		DocumentID: decision.Event.DocumentID,
		Principal:  decision.Event.UserID,
		Level:      decision.Event.Level,
		Verdict:    verdict,
		Comments:   decision.Event.Comment,
	})
	if err != nil {
		a.logger.Error("Decision from Lark rejected",
			zap.Error(err),
			zap.Int64("document_id", decision.Event.DocumentID),
			zap.String("user_id", decision.Event.UserID),
			zap.Int("level", decision.Event.Level))
		return nil
	}

	a.logger.Info("Decision recorded from Lark",
		zap.Int64("document_id", decision.Event.DocumentID),
		zap.String("user_id", decision.Event.UserID),
		zap.Int("level", decision.Event.Level),
		zap.String("verdict", verdict))

	return nil
}

// translateAction maps a Lark card action to a verdict. Returns "" for
// actions that carry no decision.
func translateAction(action string) string {
	switch strings.ToLower(action) {
	case "approve", "approved", "agree":
		return entity.VerdictApprove
	case "reject", "rejected", "refuse":
		return entity.VerdictReject
	default:
		return ""
	}
}
