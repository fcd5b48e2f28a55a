package notifications

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/angelmondragon/tracebridge-backend/pkg/logger"
)

// Invite is the message delivered to an invited supplier contact.
type Invite struct {
	Email     string
	Link      string
	BrandName string
	Note      *string
	Reinvite  bool
}

// Mailer delivers invitation messages.
type Mailer interface {
	SendInvite(ctx context.Context, invite Invite) error
}

// LogMailer writes invitations to the log instead of sending them.
type LogMailer struct {
	logg *logger.Logger
}

// NewLogMailer returns the default Mailer.
func NewLogMailer(logg *logger.Logger) *LogMailer {
	return &LogMailer{logg: logg}
}

func (m *LogMailer) SendInvite(ctx context.Context, invite Invite) error {
	if _, err := mail.ParseAddress(invite.Email); err != nil {
		return fmt.Errorf("invalid invite address %q: %w", invite.Email, err)
	}
	fields := map[string]any{
		"email":      invite.Email,
		"invite_url": invite.Link,
		"brand_name": invite.BrandName,
		"reinvite":   invite.Reinvite,
	}
	if invite.Note != nil {
		fields["note"] = *invite.Note
	}
	m.logg.Info(m.logg.WithFields(ctx, fields), "invitation ready for delivery")
	return nil
}
