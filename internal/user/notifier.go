package user

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/user/entity"
)

// LogNotifier stands in for a mail sender: it writes the reset link to the
// server log, where an operator can forward it.
type LogNotifier struct {
	logger  *zap.SugaredLogger
	baseURL string
}

func NewLogNotifier(logger *zap.SugaredLogger, baseURL string) *LogNotifier {
	return &LogNotifier{logger: logger, baseURL: baseURL}
}

func (n *LogNotifier) NotifyReset(_ context.Context, u *entity.User, ticket ResetTicket) error {
	link, err := url.Parse(n.baseURL)
	if err != nil {
		return fmt.Errorf("parse reset url: %w", err)
	}
	q := link.Query()
	q.Set("token", ticket.Token)
	link.RawQuery = q.Encode()

	n.logger.Infow("password reset link issued",
		"user_id", u.ID,
		"email", u.Email,
		"link", link.String(),
		"expires_at", ticket.ExpiresAt,
	)
	return nil
}
