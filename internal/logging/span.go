package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span measures one logical operation, typically a single service call.
type Span struct {
	logger *slog.Logger
	start  time.Time
}

// StartSpan derives an operation-scoped logger carrying a fresh span id and
// the operation name. The returned context feeds child log statements; End
// emits the completion entry with the measured duration.
func StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := FromContext(ctx).With(
		slog.String("span_id", uuid.NewString()),
		slog.String("operation", operation),
	)
	ctx = WithLogger(ctx, logger)

	return ctx, &Span{logger: logger, start: time.Now()}
}

// End finalizes the span.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.logger.Debug("operation completed", slog.Duration("duration", time.Since(s.start)))
}
