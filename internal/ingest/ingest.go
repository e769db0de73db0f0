// Package ingest feeds line-oriented input into a writer.
package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/agenthands/neobatch/internal/core"
	"github.com/agenthands/neobatch/internal/core/model"
)

const (
	FormatNDJSON = "ndjson"
	FormatLines  = "lines"
)

type Options struct {
	Format string
	// DefaultLabel is the label given to records in the "lines" format.
	DefaultLabel string
}

type Result struct {
	Lines    int
	Entities int
}

// Run reads r to the end, writing one entity per non-blank line into sink,
// then flushes. In "lines" format a line is "name|object|relation" and only
// the name is used.
func Run(ctx context.Context, r io.Reader, sink core.Sink, opts Options, logger *zap.Logger) (Result, error) {
	var res Result
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Lines++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		entity, err := parseLine(line, opts)
		if err != nil {
			return res, fmt.Errorf("line %d: %w", res.Lines, err)
		}
		if err := sink.Write(ctx, entity); err != nil {
			return res, fmt.Errorf("line %d: %w", res.Lines, err)
		}
		res.Entities++
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("failed to read input: %w", err)
	}

	if err := sink.Flush(ctx); err != nil {
		return res, err
	}
	logger.Info("DONE", zap.Int("lines", res.Lines), zap.Int("entities", res.Entities))
	return res, nil
}

func parseLine(line string, opts Options) (model.Entity, error) {
	switch opts.Format {
	case FormatLines:
		parts := strings.Split(line, "|")
		return &model.NodeEntity{
			Label:      opts.DefaultLabel,
			Attributes: map[string]any{"name": parts[0]},
		}, nil
	case FormatNDJSON, "":
		entities, err := model.DecodeEntities([]byte(line))
		if err != nil {
			return nil, err
		}
		if len(entities) != 1 {
			return nil, fmt.Errorf("expected one entity per line, got %d", len(entities))
		}
		return entities[0], nil
	default:
		return nil, fmt.Errorf("unknown input format %q", opts.Format)
	}
}
