package server

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"github.com/Megii/CarCareFunctions/events"
	"github.com/Megii/CarCareFunctions/groups"
	"github.com/Megii/CarCareFunctions/messages"
	"github.com/Megii/CarCareFunctions/nearby"
	"github.com/Megii/CarCareFunctions/notify"
	"github.com/Megii/CarCareFunctions/store"
	"go.uber.org/zap"
)

// Server holds the clients shared by every invocation of the functions.
type Server struct {
	Store   store.Store
	Handler *events.Handler
}

func ServerInit(ctx context.Context, cfg Config) (*Server, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{
		DatabaseURL:   cfg.DatabaseURL,
		ProjectID:     cfg.ProjectID,
		StorageBucket: cfg.VoiceBucket,
	})
	if err != nil {
		return nil, fmt.Errorf("error initializing app: %w", err)
	}

	msgr, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error initializing messager: %w", err)
	}

	s, err := openStore(ctx, app, cfg)
	if err != nil {
		return nil, err
	}

	var signer messages.ClipSigner
	if cfg.VoiceBucket != "" {
		stor, err := app.Storage(ctx)
		if err != nil {
			return nil, fmt.Errorf("error initializing storage: %w", err)
		}
		bucket, err := stor.Bucket(cfg.VoiceBucket)
		if err != nil {
			return nil, fmt.Errorf("error opening bucket %s: %w", cfg.VoiceBucket, err)
		}
		signer = messages.NewBucketSigner(bucket, cfg.SignedURLTTL)
	}

	d := notify.NewDispatcher(notify.NewFCM(msgr), s)

	zap.S().Infow("server initialized",
		"store", cfg.Store,
		"radius", cfg.NearbyRadius,
		"capacity", cfg.GroupCapacity,
		"voiceBucket", cfg.VoiceBucket,
	)

	return &Server{
		Store: s,
		Handler: &events.Handler{
			Nearby:   nearby.NewMaintainer(s, cfg.NearbyRadius),
			Groups:   groups.NewCoordinator(s, d, cfg.GroupCapacity, cfg.ClickAction),
			Messages: messages.NewNotifier(s, d, signer, cfg.ClickAction),
		},
	}, nil
}

func openStore(ctx context.Context, app *firebase.App, cfg Config) (store.Store, error) {
	if cfg.Store == StoreFirestore {
		fs, err := app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("error initializing firestore: %w", err)
		}
		return store.NewFirestore(fs), nil
	}

	rtdb, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	return store.NewRTDB(rtdb), nil
}
