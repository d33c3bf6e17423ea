package notificator

import (
	"fmt"
	"net/smtp"
	"strconv"

	"github.com/promohive/rewards/internal/models"
	"github.com/promohive/rewards/pkg/logger"
)

type EmailNotificator struct {
	logger *logger.Logger

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPSender   string

	SMTPAuth smtp.Auth

	// sendMail is smtp.SendMail outside tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailNotificator(logger *logger.Logger, SMTPHost string, SMTPPort int, SMTPUser string, SMTPPassword string, SMTPSender string) *EmailNotificator {
	auth := smtp.PlainAuth(
		"",
		SMTPUser,
		SMTPPassword,
		SMTPHost,
	)

	return &EmailNotificator{
		logger:       logger.Named("email"),
		SMTPAuth:     auth,
		SMTPHost:     SMTPHost,
		SMTPPort:     SMTPPort,
		SMTPUser:     SMTPUser,
		SMTPPassword: SMTPPassword,
		SMTPSender:   SMTPSender,
		sendMail:     smtp.SendMail,
	}
}

func (e *EmailNotificator) SendNotification(to string, notification *models.Notification) error {
	addr := fmt.Sprintf("%s:%s", e.SMTPHost, strconv.Itoa(e.SMTPPort))
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		e.SMTPSender,
		to,
		"PromoHive: "+notification.Title,
		notification.Message,
	)
	if err := e.sendMail(addr, e.SMTPAuth, e.SMTPSender, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	e.logger.Debug("Email sent", "to", to, "kind", notification.Kind)
	return nil
}
