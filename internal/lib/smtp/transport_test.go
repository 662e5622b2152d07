package smtp

import (
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/marketplace-backend/internal/config"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestTransport_Sender(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.SMTP
		want string
	}{
		{name: "explicit from", cfg: config.SMTP{SMTPUser: "login@example.com", From: "noreply@example.com"}, want: "noreply@example.com"},
		{name: "falls back to user", cfg: config.SMTP{SMTPUser: "login@example.com"}, want: "login@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTransport(tt.cfg, newNoopLogger())
			assert.Equal(t, tt.want, tr.Sender())
		})
	}
}

func TestTransport_Configured(t *testing.T) {
	assert.False(t, NewTransport(config.SMTP{}, newNoopLogger()).Configured())
	assert.True(t, NewTransport(config.SMTP{SMTPHost: "smtp.example.com"}, newNoopLogger()).Configured())
}

func TestTransport_ConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	tr := NewTransport(config.SMTP{SMTPHost: "127.0.0.1", SMTPPort: strconv.Itoa(addr.Port)}, newNoopLogger())
	client, err := tr.Connect()
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestTransport_RequiresStartTLS(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte("220 localhost ESMTP\r\n"))
		buf := make([]byte, 512)
		_, _ = conn.Read(buf)
		_, _ = conn.Write([]byte("250-localhost\r\n250 AUTH PLAIN\r\n"))
		_, _ = conn.Read(buf)
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	tr := NewTransport(config.SMTP{SMTPHost: "127.0.0.1", SMTPPort: strconv.Itoa(port)}, newNoopLogger())
	client, err := tr.Connect()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STARTTLS")
	assert.Nil(t, client)
}
