// Package backend exposes the CarCare realtime database triggers as
// background Cloud Functions.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"cloud.google.com/go/functions/metadata"
	"github.com/Megii/CarCareFunctions/events"
	"github.com/Megii/CarCareFunctions/server"
	"github.com/Megii/CarCareFunctions/utils"
	"go.uber.org/zap"
)

var ErrNoResource = errors.New("event has no resource")

// RTDBEvent is the payload of a realtime database trigger.
type RTDBEvent struct {
	Data  json.RawMessage `json:"data"`
	Delta json.RawMessage `json:"delta"`
}

var (
	initOnce sync.Once
	handler  *events.Handler
)

func setup() {
	cfg, err := server.LoadConfig()
	utils.Fatal(err, "error loading config")

	logger, err := server.NewLogger(cfg.LogLevel)
	utils.Fatal(err, "error building logger")
	zap.ReplaceGlobals(logger)

	srv, err := server.ServerInit(context.Background(), cfg)
	utils.Fatal(err, "error initializing server")
	handler = srv.Handler
}

func handle(ctx context.Context, e RTDBEvent) error {
	initOnce.Do(setup)

	resource, err := resourceOf(ctx)
	if err != nil {
		return err
	}
	if err := handler.Handle(ctx, resource, e.Delta); err != nil {
		zap.S().Errorw("event failed", "resource", resource, "error", err)
		return err
	}
	return nil
}

func resourceOf(ctx context.Context) (string, error) {
	m, err := metadata.FromContext(ctx)
	if err != nil {
		return "", fmt.Errorf("reading event metadata: %w", err)
	}
	if m.Resource == nil {
		return "", ErrNoResource
	}
	if m.Resource.Name != "" {
		return m.Resource.Name, nil
	}
	if m.Resource.RawPath != "" {
		return m.Resource.RawPath, nil
	}
	return "", ErrNoResource
}

// SendMessageNotification is triggered by writes to /messages/{ts}.
func SendMessageNotification(ctx context.Context, e RTDBEvent) error {
	return handle(ctx, e)
}

// SendVoiceNotification is triggered by writes to /voices/{ts}.
func SendVoiceNotification(ctx context.Context, e RTDBEvent) error {
	return handle(ctx, e)
}

// UpdateUserList is triggered by writes to /users/{userId}/coords.
func UpdateUserList(ctx context.Context, e RTDBEvent) error {
	return handle(ctx, e)
}

// AcceptInvite is triggered when /groups/{g}/invited/{m}/wasAccepted is created.
func AcceptInvite(ctx context.Context, e RTDBEvent) error {
	return handle(ctx, e)
}

// SendInvite is triggered when /groups/{g}/invited/{m}/wasSend is created.
func SendInvite(ctx context.Context, e RTDBEvent) error {
	return handle(ctx, e)
}
