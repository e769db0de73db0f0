package driver

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/agenthands/neobatch/internal/config"
)

// New picks the gateway by URL scheme and checks that the store answers.
func New(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Gateway, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid store url %q: %w", cfg.URL, err)
	}

	switch scheme := strings.ToLower(u.Scheme); scheme {
	case "http", "https":
		g := NewRESTGateway(cfg, logger)
		if err := g.Ping(ctx); err != nil {
			return nil, err
		}
		logger.Info("connected to graph store", zap.String("url", cfg.URL))
		return g, nil

	case "bolt", "bolt+s", "bolt+ssc", "neo4j", "neo4j+s", "neo4j+ssc":
		return NewBoltGateway(ctx, cfg.URL, cfg.Username, cfg.Password, cfg.Database, logger)

	default:
		return nil, fmt.Errorf("unsupported store scheme: %s", scheme)
	}
}
