package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/teslashibe/go-fitdesk/pkg/landmark"
)

// Run feeds frames from src into s until the session ends, the source is
// exhausted, or ctx is cancelled. It returns nil on completion, stop or
// end of input.
func Run(ctx context.Context, s *Session, src landmark.Source) error {
	for {
		select {
		case <-s.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		f, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("session %s: read frame: %w", s.ID(), err)
		}
		s.Step(f)
	}
}
