package transport

import (
	"context"

	logx "agrisms/pkg/logx"
)

// LogOnly is a dry-run transport. It is wired when no carrier
// credentials are configured, so the rest of the pipeline stays
// exercisable in development.
type LogOnly struct {
	Log logx.Logger
}

func (t LogOnly) Send(ctx context.Context, address, body string) error {
	_ = ctx
	t.Log.Info("dry-run send",
		logx.String("to", address),
		logx.Int("body_len", len(body)),
	)
	return nil
}
