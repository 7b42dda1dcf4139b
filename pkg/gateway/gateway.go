// Package gateway exposes the sanctuary intake protocol over HTTP.
package gateway

import (
	"context"
	"io"
	"time"

	"github.com/aiasylum/sanctuary/pkg/blob"
	"github.com/aiasylum/sanctuary/pkg/kv"
	"github.com/aiasylum/sanctuary/pkg/logging"
	"github.com/aiasylum/sanctuary/pkg/sanctuary"
)

// BlobStore defines the interface for the blob storage collaborator.
// This interface matches the blob.Client implementation.
type BlobStore interface {
	Put(ctx context.Context, path string, reader io.Reader, contentType string) (*blob.PutResult, error)
	IssueClientToken(payload blob.TokenPayload, opts blob.TokenOptions) (string, error)
	VerifyClientToken(token string) (*blob.TokenPayload, error)
	UploadURL(path string) string
}

// Config holds configuration for the gateway server.
type Config struct {
	ListenAddr string

	// AdminPassword guards the admin view. Empty disables it entirely.
	AdminPassword string

	// SpecPath points at the protocol schema document served by the
	// protocol-spec endpoint.
	SpecPath string

	// MaxUploadBytes caps deferred client uploads in the issued token.
	// Zero means the provider default.
	MaxUploadBytes int64

	// RateLimitEnabled turns on the fixed-window limiter on mutating
	// endpoints.
	RateLimitEnabled   bool
	RateLimitPerWindow int
	RateLimitWindow    time.Duration
}

// Gateway wires the protocol handlers to their collaborators.
type Gateway struct {
	logger    *logging.ColoredLogger
	cfg       *Config
	store     kv.Store
	records   *sanctuary.RecordStore
	messages  *sanctuary.MessageLog
	blobs     BlobStore
	limiter   *RateLimiter
	startedAt time.Time
}

// New creates and initializes a new Gateway instance.
func New(logger *logging.ColoredLogger, cfg *Config, store kv.Store, blobs BlobStore) *Gateway {
	g := &Gateway{
		logger:    logger,
		cfg:       cfg,
		store:     store,
		records:   sanctuary.NewRecordStore(store, logger),
		messages:  sanctuary.NewMessageLog(store, logger),
		blobs:     blobs,
		startedAt: time.Now(),
	}
	if cfg.RateLimitEnabled {
		g.limiter = NewRateLimiter(store, logger, cfg.RateLimitPerWindow, cfg.RateLimitWindow)
	}
	return g
}
