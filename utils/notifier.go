package utils

import (
	"bytes"
	"fmt"
	"html/template"

	"leadnest/config"
	"leadnest/models"

	"gopkg.in/gomail.v2"
)

var dealTemplate = template.Must(template.New("deal").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
    <h2>Deal closed 🎉</h2>
    <p>Hello {{.UserName}},</p>
    <p><strong>{{.LeadName}}</strong> ({{.LeadEmail}}) just moved to <strong>Deal</strong>
    in campaign <strong>{{.CampaignName}}</strong>.</p>
    <p>— leadnest</p>
</body>
</html>`))

// Notifier sends transactional emails to sales users.
type Notifier struct {
	dialer *gomail.Dialer
	from   string
}

func NewNotifier() *Notifier {
	cfg := config.AppConfig
	return &Notifier{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		from:   cfg.FromEmail,
	}
}

// NotifyDeal emails the assigned sales user that a campaign lead reached Deal.
func (n *Notifier) NotifyDeal(user *models.User, lead *models.Lead, campaign *models.Campaign) error {
	if config.AppConfig.SMTPHost == "" {
		// SMTP not configured; notification is best effort
		return nil
	}

	var body bytes.Buffer
	if err := dealTemplate.Execute(&body, map[string]string{
		"UserName":     user.Name,
		"LeadName":     lead.Name,
		"LeadEmail":    lead.Email,
		"CampaignName": campaign.Name,
	}); err != nil {
		return fmt.Errorf("failed to render deal notification: %w", err)
	}

	message := gomail.NewMessage()
	message.SetHeader("From", n.from)
	message.SetHeader("To", user.Email)
	message.SetHeader("Subject", fmt.Sprintf("Deal closed: %s", lead.Name))
	message.SetBody("text/html", body.String())

	return n.dialer.DialAndSend(message)
}
