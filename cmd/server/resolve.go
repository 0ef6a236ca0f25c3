package main

import (
	"context"
	"encoding/json"
	"io"

	"media-relay/internal/media"
	"media-relay/internal/platform/config"
	"media-relay/internal/platform/logger"
)

// runResolve looks up sourceURL once and prints the chosen variant as JSON.
func runResolve(ctx context.Context, out io.Writer, cfg config.Config, sourceURL string, mode media.Mode) error {
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	resolver := media.NewResolver(newProvider(cfg, log), cfg.Resolver.ResolveTimeout)

	res, err := resolver.Resolve(ctx, sourceURL, mode)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
