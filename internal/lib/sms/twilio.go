// Package sms отправляет SMS через Twilio.
package sms

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/magabrotheeeer/marketplace-backend/internal/config"
)

// ErrNotConfigured учётные данные Twilio не заданы.
var ErrNotConfigured = errors.New("twilio is not configured")

// MessageCreator часть Twilio API, которая нужна для отправки SMS.
type MessageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Sender отправляет SMS с номера from.
type Sender struct {
	api  MessageCreator
	from string
}

// NewSender создаёт Sender по конфигу. Без учётных данных возвращает ErrNotConfigured.
func NewSender(cfg config.Twilio) (*Sender, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.FromNumber == "" {
		return nil, ErrNotConfigured
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Sender{api: client.Api, from: cfg.FromNumber}, nil
}

// NewSenderWithAPI создаёт Sender поверх готового API (для тестов).
func NewSenderWithAPI(api MessageCreator, from string) *Sender {
	return &Sender{api: api, from: from}
}

// Send отправляет текст на номер to в формате E.164.
func (s *Sender) Send(ctx context.Context, to, body string) (string, error) {
	const op = "sms.Send"
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(s.from)
	params.SetTo(to)
	params.SetBody(body)

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if resp == nil || resp.Sid == nil {
		return "", nil
	}
	return *resp.Sid, nil
}
