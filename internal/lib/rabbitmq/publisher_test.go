package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type ChannelMock struct {
	mock.Mock
}

func (m *ChannelMock) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

func TestPublishMessage_Envelope(t *testing.T) {
	ch := new(ChannelMock)

	var got amqp.Publishing
	ch.On("Publish", "marketplace.events", RoutingNotificationCreated, false, false, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(4).(amqp.Publishing) }).
		Return(nil).Once()

	type event struct {
		Message string `json:"message"`
	}
	err := PublishMessage(ch, "marketplace.events", RoutingNotificationCreated, event{Message: "New Supplier created: Acme"})
	require.NoError(t, err)

	assert.Equal(t, "application/json", got.ContentType)
	assert.Equal(t, amqp.Persistent, got.DeliveryMode)
	assert.Equal(t, RoutingNotificationCreated, got.Type)
	_, err = ulid.ParseStrict(got.MessageId)
	assert.NoError(t, err)

	var decoded event
	require.NoError(t, json.Unmarshal(got.Body, &decoded))
	assert.Equal(t, "New Supplier created: Acme", decoded.Message)
	ch.AssertExpectations(t)
}

func TestPublishMessage_ChannelError(t *testing.T) {
	ch := new(ChannelMock)
	ch.On("Publish", mock.Anything, mock.Anything, false, false, mock.Anything).Return(errors.New("channel closed"))

	err := PublishMessage(ch, "x", "y", map[string]string{"a": "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel closed")
}

func TestPublishMessage_MarshalError(t *testing.T) {
	ch := new(ChannelMock)

	err := PublishMessage(ch, "x", "y", make(chan int))
	require.Error(t, err)
	ch.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestNewMessageID_Monotonic(t *testing.T) {
	now := time.Now()
	prev := NewMessageID(now)
	for range 100 {
		next := NewMessageID(now)
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestPublisher_CanceledContext(t *testing.T) {
	ch := new(ChannelMock)
	p := NewPublisher(ch, "marketplace.events")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Publish(ctx, RoutingUserRegistered, struct{}{})
	assert.ErrorIs(t, err, context.Canceled)
	ch.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), "any", nil))
}
