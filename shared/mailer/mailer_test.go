package mailer

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	tests := []struct {
		name      string
		from      string
		msg       *Message
		errString string
	}{
		{
			name: "valid message with attachment",
			from: "noreply@openmusic.dev",
			msg: &Message{
				To:      "a@b.com",
				Subject: "Export Playlist: Road Trip",
				Body:    "Your export is attached.",
				Attachments: []Attachment{
					{Filename: "playlist-1.json", Data: []byte(`{"playlist":{}}`)},
				},
			},
		},
		{
			name:      "invalid sender",
			from:      "not-an-address",
			msg:       &Message{To: "a@b.com"},
			errString: "invalid sender address",
		},
		{
			name:      "invalid recipient",
			from:      "noreply@openmusic.dev",
			msg:       &Message{To: "nobody"},
			errString: "invalid recipient address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := buildMessage(tt.from, tt.msg)

			if tt.errString != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				return
			}

			require.NoError(t, err)
			var buf bytes.Buffer
			_, err = m.WriteTo(&buf)
			require.NoError(t, err)
			assert.Contains(t, buf.String(), "Export Playlist: Road Trip")
			assert.Contains(t, buf.String(), "playlist-1.json")
		})
	}
}

func TestSender_RateLimitHonorsContext(t *testing.T) {
	s, err := NewSender(&Config{
		Host:      "localhost",
		Port:      2525,
		From:      "noreply@openmusic.dev",
		Timeout:   time.Second,
		RateLimit: 0.001,
		RateBurst: 1,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	// drain the single burst token so the next Wait has to block
	require.True(t, s.limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = s.Send(ctx, &Message{To: "a@b.com", Subject: "s", Body: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mail rate limiter")
}
