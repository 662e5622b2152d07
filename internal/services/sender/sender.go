// Package sender реализует канал уведомлений: адреса с @ уходят письмом
// через SMTP, номера в формате E.164 уходят SMS через Twilio.
package sender

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/marketplace-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/phone"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/sl"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/smtp"
	"github.com/magabrotheeeer/marketplace-backend/internal/metrics"
)

// Каналы доставки.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

const defaultSubject = "Your verification code"

// SMSSender отправляет SMS.
type SMSSender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// SenderService маршрутизирует сообщения по каналам.
type SenderService struct {
	transport smtp.TransportInterface
	sms       SMSSender
	metrics   *metrics.Metrics
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService. sms может быть nil,
// тогда SMS-канал считается ненастроенным.
func NewSenderService(transport smtp.TransportInterface, sms SMSSender, m *metrics.Metrics, log *slog.Logger) *SenderService {
	return &SenderService{
		transport: transport,
		sms:       sms,
		metrics:   m,
		log:       log,
	}
}

// Send доставляет сообщение по адресу назначения.
func (s *SenderService) Send(ctx context.Context, destination, message string) error {
	const op = "sender.Send"
	log := s.log.With(sl.Op(op))

	destination = strings.TrimSpace(destination)
	switch {
	case strings.Contains(destination, "@"):
		err := s.sendEmail(ctx, destination, defaultSubject, message)
		s.observe(ChannelEmail, err)
		if err != nil {
			log.Error("failed to send email", sl.Err(err))
			return apperr.Wrap(apperr.KindUpstream, "failed to send notification", fmt.Errorf("%s: %w", op, err))
		}
		return nil
	case phone.IsE164(destination):
		err := s.sendSMS(ctx, destination, message)
		s.observe(ChannelSMS, err)
		if err != nil {
			log.Error("failed to send sms", sl.Err(err))
			return apperr.Wrap(apperr.KindUpstream, "failed to send notification", fmt.Errorf("%s: %w", op, err))
		}
		return nil
	default:
		return apperr.Validation("unsupported notification destination", map[string]string{
			"destination": "must be an email address or an E.164 phone number",
		})
	}
}

func (s *SenderService) observe(channel string, err error) {
	if s.metrics == nil {
		return
	}
	result := metrics.ResultOK
	if err != nil {
		result = metrics.ResultError
	}
	s.metrics.OTPDispatch.WithLabelValues(channel, result).Inc()
}

func (s *SenderService) sendSMS(ctx context.Context, to, body string) error {
	if s.sms == nil {
		return fmt.Errorf("sms channel is not configured")
	}
	sid, err := s.sms.Send(ctx, to, body)
	if err != nil {
		return err
	}
	s.log.Info("sms sent successfully", slog.String("sid", sid))
	return nil
}

func (s *SenderService) sendEmail(ctx context.Context, to, subject, bodyText string) error {
	if s.transport == nil || !s.transport.Configured() {
		return fmt.Errorf("email channel is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	from := s.transport.Sender()
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Close()

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err = wc.Write([]byte(msg)); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err = wc.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}
	if err = client.Quit(); err != nil {
		return fmt.Errorf("quit: %w", err)
	}

	s.log.Info("email sent successfully")
	return nil
}
