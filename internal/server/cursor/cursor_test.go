package cursor

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	c := NewCodec([]byte("secret"))
	p := models.Position{UpdatedAt: time.Date(2025, 3, 3, 9, 0, 0, 123456000, time.UTC), ID: "client-ü-42"}

	token := c.Encode(p)
	assert.NotContains(t, token, "client", "token must be opaque")

	got, err := c.Decode(token)
	require.NoError(t, err)
	assert.True(t, p.UpdatedAt.Equal(got.UpdatedAt))
	assert.Equal(t, p.ID, got.ID)
}

func TestCodec_LongestRecordID(t *testing.T) {
	c := NewCodec([]byte("secret"))
	p := models.Position{UpdatedAt: time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC), ID: strings.Repeat("x", common.MaxRecordIDLength)}

	got, err := c.Decode(c.Encode(p))
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestCodec_PreEpochTimestamp(t *testing.T) {
	c := NewCodec(nil)
	p := models.Position{UpdatedAt: time.Date(1965, 1, 1, 0, 0, 0, 0, time.UTC), ID: "old"}

	got, err := c.Decode(c.Encode(p))
	require.NoError(t, err)
	assert.True(t, p.UpdatedAt.Equal(got.UpdatedAt))
}

func TestCodec_RejectsBadInput(t *testing.T) {
	c := NewCodec([]byte("secret"))
	good := c.Encode(models.Position{UpdatedAt: time.Unix(1700000000, 0), ID: "abc"})
	raw, err := base64.RawURLEncoding.DecodeString(good)
	require.NoError(t, err)

	flip := func(i int) string {
		b := append([]byte(nil), raw...)
		b[i] ^= 0x01
		return base64.RawURLEncoding.EncodeToString(b)
	}

	tests := map[string]string{
		"empty":             "",
		"not base64":        "***",
		"too short":         base64.RawURLEncoding.EncodeToString([]byte{1, 2, 3}),
		"too long":          base64.RawURLEncoding.EncodeToString(make([]byte, 2048)),
		"tampered time":     flip(3),
		"tampered id":       flip(headSize),
		"tampered tag":      flip(len(raw) - 1),
		"unknown version":   flip(0),
		"truncated":         good[:len(good)-4],
		"padding appended":  good + "==",
		"other signing key": NewCodec([]byte("other")).Encode(models.Position{UpdatedAt: time.Unix(1700000000, 0), ID: "abc"}),
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := c.Decode(token)
			require.ErrorIs(t, err, common.ErrInvalidCursor)
		})
	}
}

func TestCodec_Deterministic(t *testing.T) {
	c := NewCodec([]byte("k"))
	p := models.Position{UpdatedAt: time.Unix(1700000000, 5000), ID: strings.Repeat("x", 40)}
	assert.Equal(t, c.Encode(p), c.Encode(p))
}
