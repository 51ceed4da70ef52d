package plan

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Execute runs every node of p in order against its bound buffers.
// The context is checked between nodes; a running kernel is not interrupted.
func Execute(ctx context.Context, p *Plan) error {
	for i, n := range p.nodes {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("execute: stopped before node %d (%s): %w", i, n.Label, err)
		}
		start := time.Now()
		if err := n.Primitive.Execute(p.args[i]); err != nil {
			return fmt.Errorf("execute: node %d (%s): %w", i, n.Label, err)
		}
		p.logger.Debug("node executed",
			slog.Int("index", i),
			slog.String("node", n.Label),
			slog.Duration("elapsed", time.Since(start)))
	}
	return nil
}
