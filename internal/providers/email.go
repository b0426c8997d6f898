package providers

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"expiry-alert-service/internal/config"
	"expiry-alert-service/internal/logging"
	"expiry-alert-service/internal/models"
	"expiry-alert-service/internal/utils"
)

// AddressBook resolves a recipient user to an email address. Address
// ownership belongs to the identity service; this is its boundary.
type AddressBook interface {
	EmailFor(userID int64) (string, bool)
}

// StaticAddressBook is an in-memory AddressBook, loaded from configuration.
type StaticAddressBook map[int64]string

func (b StaticAddressBook) EmailFor(userID int64) (string, bool) {
	addr, ok := b[userID]
	return addr, ok
}

// EmailNotifier sends expiry digests over SMTP for recipients who opted into
// the email channel. Sends are rate limited and retried; failures are the
// caller's to log, never to act on.
type EmailNotifier struct {
	cfg     config.Config
	book    AddressBook
	logger  *logging.Logger
	limiter *rate.Limiter
}

func NewEmailNotifier(cfg config.Config, book AddressBook, logger *logging.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:     cfg,
		book:    book,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.Email.RateLimit)), cfg.Email.RateLimit),
	}
}

// Notify emails one digest covering the recipient's just-dispatched alerts.
// Only invoked when the configuration includes a non-in_app channel; push and
// sms intents are recorded on the alert but have no sender here.
func (n *EmailNotifier) Notify(ctx context.Context, cfg models.AlertConfiguration, alerts []models.ExpiryAlert) error {
	if !cfg.HasChannel(models.ChannelEmail) {
		return nil
	}
	if n.cfg.Email.SMTPServer == "" {
		return fmt.Errorf("email channel requested but SMTP is not configured")
	}
	addr, ok := n.book.EmailFor(cfg.UserID)
	if !ok {
		return fmt.Errorf("no email address known for user %d", cfg.UserID)
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("email rate limit wait cancelled: %w", err)
	}

	msg := n.compose(addr, alerts)
	server := fmt.Sprintf("%s:%d", n.cfg.Email.SMTPServer, n.cfg.Email.SMTPPort)
	auth := smtp.PlainAuth("", n.cfg.Email.Username, n.cfg.Email.Password, n.cfg.Email.SMTPServer)

	return utils.Retry(ctx, n.logger, 3, 2*time.Second, func() error {
		if err := smtp.SendMail(server, auth, n.cfg.Email.Username, []string{addr}, msg); err != nil {
			return fmt.Errorf("failed to send expiry digest to %s: %w", addr, err)
		}
		return nil
	})
}

func (n *EmailNotifier) compose(to string, alerts []models.ExpiryAlert) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", n.cfg.Email.FromName, n.cfg.Email.Username)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: Expiry alerts: %d item(s) need attention\r\n\r\n", len(alerts))

	for _, a := range alerts {
		switch a.AlertType {
		case models.AlertTypeExpired:
			fmt.Fprintf(&b, "- %s (batch %s, %s): EXPIRED %d day(s) ago, qty %d, value %.2f\r\n",
				a.ItemName, a.BatchNumber, a.Location, -a.DaysUntilExpiry, a.Quantity, a.EstimatedValue)
		default:
			fmt.Fprintf(&b, "- %s (batch %s, %s): expires in %d day(s), qty %d, value %.2f\r\n",
				a.ItemName, a.BatchNumber, a.Location, a.DaysUntilExpiry, a.Quantity, a.EstimatedValue)
		}
	}
	return []byte(b.String())
}
