package sms

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/magabrotheeeer/marketplace-backend/internal/config"
)

type MessageCreatorMock struct {
	mock.Mock
}

func (m *MessageCreatorMock) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	args := m.Called(params)
	msg, _ := args.Get(0).(*twilioApi.ApiV2010Message)
	return msg, args.Error(1)
}

func TestNewSender_NotConfigured(t *testing.T) {
	s, err := NewSender(config.Twilio{AccountSID: "AC123"})
	assert.Nil(t, s)
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestSender_Send(t *testing.T) {
	sid := "SM123"

	tests := []struct {
		name    string
		resp    *twilioApi.ApiV2010Message
		err     error
		wantSID string
		wantErr bool
	}{
		{name: "delivered", resp: &twilioApi.ApiV2010Message{Sid: &sid}, wantSID: sid},
		{name: "api error", err: errors.New("20003 authenticate"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := new(MessageCreatorMock)
			api.On("CreateMessage", mock.MatchedBy(func(p *twilioApi.CreateMessageParams) bool {
				return *p.To == "+4532123456" && *p.From == "+4511111111" && *p.Body == "code 123456"
			})).Return(tt.resp, tt.err).Once()

			s := NewSenderWithAPI(api, "+4511111111")
			got, err := s.Send(context.Background(), "+4532123456", "code 123456")
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantSID, got)
			}
			api.AssertExpectations(t)
		})
	}
}

func TestSender_Send_CanceledContext(t *testing.T) {
	api := new(MessageCreatorMock)
	s := NewSenderWithAPI(api, "+4511111111")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Send(ctx, "+4532123456", "hi")
	assert.ErrorIs(t, err, context.Canceled)
	api.AssertNotCalled(t, "CreateMessage", mock.Anything)
}
