package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const defaultTimeout = 10 * time.Second

// Config captures the settings required to reach the user store.
type Config struct {
	URI      string
	Database string
	// AppName is reported to the server and shows up in its logs.
	AppName string
	Timeout time.Duration
}

// clientOptions builds the driver options: writes are majority-acknowledged
// and retryable.
func clientOptions(cfg Config) *options.ClientOptions {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetWriteConcern(writeconcern.Majority()).
		SetRetryWrites(true)
	if cfg.AppName != "" {
		opts.SetAppName(cfg.AppName)
	}
	return opts
}

// Connect establishes a MongoDB client, verifies connectivity with a ping and
// returns the client together with the user database.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	return client, client.Database(cfg.Database), nil
}
