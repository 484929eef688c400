// Package sender отправляет владельцам пропусков квитанции о подтверждении.
package sender

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/campus-pass/internal/lib/sl"
	"github.com/magabrotheeeer/campus-pass/internal/lib/smtp"
	"github.com/magabrotheeeer/campus-pass/internal/models"
)

// ErrUnexpectedEvent — в очередь квитанций попало событие другого типа.
var ErrUnexpectedEvent = errors.New("unexpected event type")

// SenderService превращает события pass.completed в письма.
type SenderService struct {
	transport smtp.TransportInterface
	log       *slog.Logger
	location  *time.Location
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(log *slog.Logger, transport smtp.TransportInterface) *SenderService {
	return &SenderService{
		transport: transport,
		log:       log,
		location:  time.UTC,
	}
}

// SendPassReceipt разбирает событие и отправляет квитанцию. События без
// адреса владельца пропускаются без ошибки.
func (s *SenderService) SendPassReceipt(body []byte) error {
	const op = "sender.SendPassReceipt"
	log := s.log.With(sl.Op(op))

	var event models.PassEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("%s: error unmarshalling message: %w", op, err)
	}
	if event.Type != models.EventPassCompleted {
		return fmt.Errorf("%s: %w: %q", op, ErrUnexpectedEvent, event.Type)
	}
	if event.UserEmail == "" {
		log.Info("owner has no e-mail, receipt skipped", slog.String("pass_id", event.PassID))
		return nil
	}

	subject := "Your campus pass " + event.PassID + " was approved"
	bodyText := fmt.Sprintf("Hello, %s!\r\n\r\nYour %s pass to %s was approved at %s.\r\nPass ID: %s\r\n",
		event.UserName,
		event.PassType,
		event.Purpose,
		event.OccurredAt.In(s.location).Format("2006-01-02 15:04 MST"),
		event.PassID,
	)

	if err := s.sendEmail([]string{event.UserEmail}, subject, bodyText); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *SenderService) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetSMTPUser(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer client.Close()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		s.log.Error("failed to set MAIL FROM", slog.String("from", s.transport.GetSMTPUser()), sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get Data writer", sl.Err(err))
		return err
	}

	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}

	if err = wc.Close(); err != nil {
		s.log.Error("failed to close Data writer", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", slog.Any("to", to))
	return nil
}
