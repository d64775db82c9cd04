package mailer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/diagnosis/hotel-bookings/pkg/logger"
)

type DevMailer struct {
	out io.Writer
}

// NewDevMailer prints mail to out, or stdout when out is nil.
func NewDevMailer(out io.Writer) *DevMailer {
	if out == nil {
		out = os.Stdout
	}
	return &DevMailer{out: out}
}

func (d *DevMailer) Send(ctx context.Context, msg Message) error {
	logger.InfoContext(ctx, "📧 [DEV MAIL]",
		"to", msg.To,
		"subject", msg.Subject,
	)

	fmt.Fprintf(d.out, "\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"📧 EMAIL (DEV MODE)\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"To: %s (%s)\n"+
		"Subject: %s\n"+
		"\n"+
		"%s\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n",
		msg.To, msg.ToName, msg.Subject, msg.Text)

	return nil
}
