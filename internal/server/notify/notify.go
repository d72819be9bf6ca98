// Package notify delivers one-time codes to account owners. Delivery is best
// effort: callers log failures and move on.
package notify

import (
	"context"

	"github.com/realforestry/hortus-auth/internal/logging"
)

type Notifier interface {
	SendOneTimeCode(ctx context.Context, email, code string) error
}

// LogNotifier writes codes to the log instead of sending them. Meant for
// local development only.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(logger logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("module", "notify")}
}

func (n *LogNotifier) SendOneTimeCode(ctx context.Context, email, code string) error {
	n.logger.Info(ctx, "one-time code issued", "email", email, "code", code)
	return nil
}
