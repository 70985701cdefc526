package channel

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famulus-ai/famulus/internal/models"
)

func baseMessage(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 42,
		Text:      text,
		Chat:      &tgbotapi.Chat{ID: 123456},
		From:      &tgbotapi.User{ID: 789},
		Date:      1700000000,
	}
}

func TestNormalizeTextMessage(t *testing.T) {
	msg := normalizeTelegramMessage(baseMessage("remind me to call Alex"), nil)

	assert.Equal(t, "42", msg.ID)
	assert.Equal(t, "123456", msg.ConversationID)
	assert.Equal(t, "789", msg.UserID)
	assert.Equal(t, "remind me to call Alex", msg.Text)
	assert.Nil(t, msg.Media)
	assert.False(t, msg.ReceivedAt.IsZero())
}

func TestNormalizeLocationMessage(t *testing.T) {
	m := baseMessage("")
	m.Location = &tgbotapi.Location{Latitude: 52.52, Longitude: 13.405}

	msg := normalizeTelegramMessage(m, nil)
	require.NotNil(t, msg.Media)
	assert.Equal(t, models.MediaLocation, msg.Media.Type)
	assert.InDelta(t, 52.52, msg.Media.Latitude, 1e-9)
	assert.InDelta(t, 13.405, msg.Media.Longitude, 1e-9)
}

func TestNormalizePhotoPicksLargestAndKeepsCaption(t *testing.T) {
	m := baseMessage("")
	m.Caption = "my parking spot"
	m.Photo = []tgbotapi.PhotoSize{
		{FileID: "small", Width: 90},
		{FileID: "large", Width: 1280},
	}

	resolved := ""
	msg := normalizeTelegramMessage(m, func(fileID string) (string, error) {
		resolved = fileID
		return "https://files.example/" + fileID, nil
	})

	require.NotNil(t, msg.Media)
	assert.Equal(t, models.MediaPhoto, msg.Media.Type)
	assert.Equal(t, "large", resolved)
	assert.Equal(t, "https://files.example/large", msg.Media.Path)
	assert.Equal(t, "my parking spot", msg.Text)
}

func TestNormalizeVoiceMessage(t *testing.T) {
	m := baseMessage("")
	m.Voice = &tgbotapi.Voice{FileID: "voice-1"}

	msg := normalizeTelegramMessage(m, nil)
	require.NotNil(t, msg.Media)
	assert.Equal(t, models.MediaVoice, msg.Media.Type)
	assert.Equal(t, "voice-1", msg.Media.Path)
}

func TestResolveFileFallsBackToID(t *testing.T) {
	assert.Equal(t, "f1", resolveFile("f1", nil))
}
