package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/betagouv/assistant-declaration/src/config"
	"github.com/betagouv/assistant-declaration/src/logger"
	"github.com/mailgun/mailgun-go/v4"
)

type EmailService interface {
	SendSyncFailureEmail(toEmail, organizationName, errorMessage string) error
	SendDeclarationTransmittedEmail(toEmail, serieName, reference string) error
}

func NewEmailService() EmailService {
	if config.Cfg == nil {
		slog.Error("Configuration (config.Cfg) is nil. Email service will default to mock.")
		return &MockEmailService{}
	}

	provider := strings.ToLower(config.Cfg.EmailServiceProvider)
	logger.L.Info("Initializing email service", "provider", provider)

	switch provider {
	case "mailgun":
		if config.Cfg.MailgunDomain == "" || config.Cfg.MailgunPrivateAPIKey == "" || config.Cfg.SenderEmail == "" {
			logger.L.Warn("Mailgun configuration incomplete (Domain, API Key, or SenderEmail missing). Falling back to MockEmailService.")
			return &MockEmailService{}
		}
		mg := mailgun.NewMailgun(config.Cfg.MailgunDomain, config.Cfg.MailgunPrivateAPIKey)
		logger.L.Info("Mailgun client initialized", "domain", config.Cfg.MailgunDomain)
		return &MailgunEmailService{
			mg:          mg,
			senderEmail: config.Cfg.SenderEmail,
			senderName:  config.Cfg.SenderName,
		}
	case "smtp":
		if config.Cfg.SMTPServer == "" || config.Cfg.SMTPUser == "" || config.Cfg.SMTPPassword == "" || config.Cfg.SenderEmail == "" {
			logger.L.Warn("SMTP configuration incomplete. Falling back to MockEmailService.")
			return &MockEmailService{}
		}
		return &SMTPEmailService{
			SMTPServer:   config.Cfg.SMTPServer,
			SMTPPort:     config.Cfg.SMTPPort,
			SMTPUser:     config.Cfg.SMTPUser,
			SMTPPassword: config.Cfg.SMTPPassword,
			SenderEmail:  config.Cfg.SenderEmail,
		}
	default:
		logger.L.Info("Defaulting to MockEmailService.")
		return &MockEmailService{}
	}
}

func syncFailureBody(organizationName, errorMessage string) (subject, body string) {
	subject = fmt.Sprintf("Synchronisation billetterie en échec pour %s", organizationName)
	body = fmt.Sprintf(
		"Bonjour,\n\nLa dernière synchronisation de la billetterie de %s a échoué :\n\n%s\n\nLa prochaine tentative repartira de la dernière synchronisation réussie.\n",
		organizationName, errorMessage)
	return subject, body
}

func declarationTransmittedBody(serieName, reference string) (subject, body string) {
	subject = fmt.Sprintf("Déclaration transmise pour %s", serieName)
	body = fmt.Sprintf(
		"Bonjour,\n\nVotre déclaration pour le spectacle %s a bien été transmise (référence %s).\n",
		serieName, reference)
	return subject, body
}

type SMTPEmailService struct {
	SMTPServer   string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SenderEmail  string
}

func (s *SMTPEmailService) send(toEmail, subject, body string) error {
	message := strings.Join([]string{
		fmt.Sprintf("From: %s", s.SenderEmail),
		fmt.Sprintf("To: %s", toEmail),
		fmt.Sprintf("Subject: %s", subject),
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", s.SMTPServer, s.SMTPPort)
	auth := smtp.PlainAuth("", s.SMTPUser, s.SMTPPassword, s.SMTPServer)
	if err := smtp.SendMail(addr, auth, s.SenderEmail, []string{toEmail}, []byte(message)); err != nil {
		logger.L.Error("Failed to send email via SMTP", "to", toEmail, "subject", subject, "error", err)
		return fmt.Errorf("smtp send: %w", err)
	}
	logger.L.Info("Email sent via SMTP", "to", toEmail, "subject", subject)
	return nil
}

func (s *SMTPEmailService) SendSyncFailureEmail(toEmail, organizationName, errorMessage string) error {
	subject, body := syncFailureBody(organizationName, errorMessage)
	return s.send(toEmail, subject, body)
}

func (s *SMTPEmailService) SendDeclarationTransmittedEmail(toEmail, serieName, reference string) error {
	subject, body := declarationTransmittedBody(serieName, reference)
	return s.send(toEmail, subject, body)
}

type MailgunEmailService struct {
	mg          *mailgun.MailgunImpl
	senderEmail string
	senderName  string
}

func (s *MailgunEmailService) send(toEmail, subject, body string) error {
	sender := fmt.Sprintf("%s <%s>", s.senderName, s.senderEmail)
	message := s.mg.NewMessage(sender, subject, body, toEmail)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, id, err := s.mg.Send(ctx, message)
	if err != nil {
		logger.L.Error("Failed to send email via Mailgun", "to", toEmail, "subject", subject, "error", err)
		return fmt.Errorf("mailgun send: %w", err)
	}
	logger.L.Info("Email sent via Mailgun", "to", toEmail, "subject", subject, "messageID", id)
	return nil
}

func (s *MailgunEmailService) SendSyncFailureEmail(toEmail, organizationName, errorMessage string) error {
	subject, body := syncFailureBody(organizationName, errorMessage)
	return s.send(toEmail, subject, body)
}

func (s *MailgunEmailService) SendDeclarationTransmittedEmail(toEmail, serieName, reference string) error {
	subject, body := declarationTransmittedBody(serieName, reference)
	return s.send(toEmail, subject, body)
}

// MockEmailService logs instead of sending; the default outside production.
type MockEmailService struct{}

func (s *MockEmailService) SendSyncFailureEmail(toEmail, organizationName, errorMessage string) error {
	logger.L.Info("MOCK EMAIL: sync failure", "to", toEmail, "organization", organizationName, "error", errorMessage)
	return nil
}

func (s *MockEmailService) SendDeclarationTransmittedEmail(toEmail, serieName, reference string) error {
	logger.L.Info("MOCK EMAIL: declaration transmitted", "to", toEmail, "serie", serieName, "reference", reference)
	return nil
}
