package messaging

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{name: "already e164", input: "+15551234567", expected: "+15551234567"},
		{name: "ten digits gets country code", input: "5551234567", expected: "+15551234567"},
		{name: "eleven digits with leading one", input: "15551234567", expected: "+15551234567"},
		{name: "formatted number", input: "(555) 123-4567", expected: "+15551234567"},
		{name: "international with plus", input: "+44 20 7946 0958", expected: "+442079460958"},
		{name: "too short", input: "12345", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "letters only", input: "not a phone", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NormalizePhone(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPhone)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestGetMessageInfo_GSM7(t *testing.T) {
	info := GetMessageInfo("Hello, your appointment is confirmed.")
	assert.Equal(t, EncodingGSM7, info.Encoding)
	assert.Equal(t, 37, info.Length)
	assert.Equal(t, 1, info.Segments)
}

func TestGetMessageInfo_SingleSegmentBoundary(t *testing.T) {
	info := GetMessageInfo(strings.Repeat("a", 160))
	assert.Equal(t, 1, info.Segments)

	info = GetMessageInfo(strings.Repeat("a", 161))
	assert.Equal(t, 2, info.Segments)

	info = GetMessageInfo(strings.Repeat("a", 306))
	assert.Equal(t, 2, info.Segments)

	info = GetMessageInfo(strings.Repeat("a", 307))
	assert.Equal(t, 3, info.Segments)
}

func TestGetMessageInfo_ExtensionCharsCountDouble(t *testing.T) {
	info := GetMessageInfo("{}")
	assert.Equal(t, EncodingGSM7, info.Encoding)
	assert.Equal(t, 4, info.Length)
}

func TestGetMessageInfo_UCS2(t *testing.T) {
	info := GetMessageInfo("Hello 👋")
	assert.Equal(t, EncodingUCS2, info.Encoding)
	assert.Equal(t, 7, info.Length)
	assert.Equal(t, 1, info.Segments)

	info = GetMessageInfo(strings.Repeat("日", 71))
	assert.Equal(t, EncodingUCS2, info.Encoding)
	assert.Equal(t, 2, info.Segments)
}

func TestGetMessageInfo_Empty(t *testing.T) {
	info := GetMessageInfo("")
	assert.Equal(t, EncodingGSM7, info.Encoding)
	assert.Equal(t, 0, info.Length)
	assert.Equal(t, 1, info.Segments)
}

func TestSimulatedSenders(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	emailResult := NewSimulatedEmailSender(logger).SendEmail(context.Background(), EmailMessage{
		To:      "jane@example.com",
		Subject: "Welcome",
		Body:    "Hi Jane",
	})
	assert.True(t, emailResult.Success)
	assert.True(t, emailResult.Simulated)
	assert.NotEmpty(t, emailResult.ID)

	smsResult := NewSimulatedSMSSender(logger).SendSMS(context.Background(), SMSMessage{
		To:      "+15551234567",
		Message: "Hi Jane",
	})
	assert.True(t, smsResult.Success)
	assert.True(t, smsResult.Simulated)
	assert.NotEmpty(t, smsResult.ID)
}
