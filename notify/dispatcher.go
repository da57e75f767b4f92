// Package notify delivers best-effort notifications after a reconciliation
// has committed. Every channel failure is logged and swallowed.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"time"

	"github.com/Govind-619/SettleSphere/config"
	"github.com/Govind-619/SettleSphere/models"
	"github.com/Govind-619/SettleSphere/utils"
	"github.com/shopspring/decimal"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

// Notice kinds
const (
	KindDepositCredited  = "deposit_credited"
	KindPaymentCompleted = "payment_completed"
	KindPaymentFailed    = "payment_failed"
	KindPaymentRefunded  = "payment_refunded"
)

// Notice is one user-facing event to announce
type Notice struct {
	UserID    uint
	Kind      string
	Title     string
	Body      string
	Reference string
	Amount    decimal.Decimal
	Currency  string
	Balance   *decimal.Decimal
	// Email overrides the user's address on file
	Email   string
	Receipt bool
	At      time.Time
}

// Mailer sends email. *gomail.Dialer satisfies it.
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Dispatcher fans a notice out to the in-app inbox, the chat webhook and
// email
type Dispatcher struct {
	db     *gorm.DB
	cfg    config.NotifyConfig
	client *http.Client
	mailer Mailer
}

// NewDispatcher builds a dispatcher. Email is disabled when no SMTP host is
// configured and the chat webhook when no URL is.
func NewDispatcher(db *gorm.DB, cfg config.NotifyConfig) *Dispatcher {
	d := &Dispatcher{
		db:     db,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.SMTPHost != "" {
		d.mailer = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	}
	return d
}

// WithMailer replaces the SMTP dialer
func (d *Dispatcher) WithMailer(m Mailer) *Dispatcher {
	d.mailer = m
	return d
}

// Notify delivers n on every configured channel
func (d *Dispatcher) Notify(ctx context.Context, n Notice) {
	if n.At.IsZero() {
		n.At = time.Now()
	}

	if err := d.inApp(ctx, n); err != nil {
		utils.LogError("In-app notification failed for user %d (%s): %v", n.UserID, n.Reference, err)
	}
	if d.cfg.WebhookURL != "" {
		if err := d.postWebhook(ctx, n); err != nil {
			utils.LogError("Notification webhook failed for %s: %v", n.Reference, err)
		}
	}
	if d.mailer != nil {
		if err := d.email(ctx, n); err != nil {
			utils.LogError("Notification email failed for user %d (%s): %v", n.UserID, n.Reference, err)
		}
	}
}

func (d *Dispatcher) inApp(ctx context.Context, n Notice) error {
	if n.UserID == 0 {
		return nil
	}
	row := models.Notification{
		UserID:    n.UserID,
		Kind:      n.Kind,
		Title:     n.Title,
		Body:      n.Body,
		Reference: n.Reference,
	}
	return d.db.WithContext(ctx).Create(&row).Error
}

type webhookMessage struct {
	Text      string `json:"text"`
	Kind      string `json:"kind"`
	Reference string `json:"reference"`
	UserID    uint   `json:"user_id,omitempty"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency,omitempty"`
	At        string `json:"at"`
}

func (d *Dispatcher) postWebhook(ctx context.Context, n Notice) error {
	body, err := json.Marshal(webhookMessage{
		Text:      n.Title + ": " + n.Body,
		Kind:      n.Kind,
		Reference: n.Reference,
		UserID:    n.UserID,
		Amount:    n.Amount.StringFixed(2),
		Currency:  n.Currency,
		At:        n.At.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("webhook answered %d: %s", resp.StatusCode, msg)
	}
	return nil
}

func (d *Dispatcher) email(ctx context.Context, n Notice) error {
	to := n.Email
	if to == "" && n.UserID != 0 {
		var emails []string
		if err := d.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", n.UserID).Pluck("email", &emails).Error; err != nil {
			return fmt.Errorf("failed to look up email: %w", err)
		}
		if len(emails) > 0 {
			to = emails[0]
		}
	}
	if to == "" {
		utils.LogDebug("No email address for user %d, skipping email for %s", n.UserID, n.Reference)
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", d.cfg.EmailFrom)
	m.SetHeader("To", to)
	m.SetHeader("Subject", n.Title)
	m.SetBody("text/html", fmt.Sprintf(`
		<h2>%s</h2>
		<p>%s</p>
		<p>Amount: <strong>%s</strong></p>
		<p>Reference: %s</p>
	`, html.EscapeString(n.Title), html.EscapeString(n.Body), html.EscapeString(formatAmount(n)), html.EscapeString(n.Reference)))

	if n.Receipt {
		pdf, err := RenderReceipt(n)
		if err != nil {
			return err
		}
		m.Attach(fmt.Sprintf("receipt-%s.pdf", n.Reference), gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(pdf)
			return err
		}))
	}

	if err := d.mailer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
