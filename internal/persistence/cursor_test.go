package persistence

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/gymassistant/internal/domain"
)

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2025, time.March, 3, 18, 0, 0, 123456789, time.UTC)
	token := EncodeCursor(&domain.Cursor{At: at, ID: "msg-1"})
	require.NotEmpty(t, token)

	decoded, err := DecodeCursor(token)
	require.NoError(t, err)
	require.True(t, at.Equal(decoded.At))
	require.Equal(t, "msg-1", decoded.ID)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	empty, err := DecodeCursor("")
	require.NoError(t, err)
	require.Nil(t, empty)

	_, err = DecodeCursor("%%%")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = DecodeCursor(base64.RawURLEncoding.EncodeToString([]byte("no-separator")))
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = DecodeCursor(base64.RawURLEncoding.EncodeToString([]byte("yesterday|msg-1")))
	require.ErrorIs(t, err, domain.ErrValidation)
}
