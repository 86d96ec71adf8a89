// Package cursor encodes pull pagination positions as opaque tokens.
//
// A token is base64url(version | unix micros | id | tag) where tag is a
// truncated HMAC-SHA256 over the preceding bytes. Anything that does not
// decode to exactly that shape, or whose tag does not verify, is rejected
// with common.ErrInvalidCursor.
package cursor

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
)

const (
	version  byte = 1
	tagSize       = 16
	headSize      = 1 + 8
	maxIDLen      = common.MaxRecordIDLength
)

var encoding = base64.RawURLEncoding

// Codec signs and verifies cursors with a server-side key.
type Codec struct {
	key []byte
}

// NewCodec returns a Codec keyed by secret. An empty secret still produces
// checksummed tokens, which catches corruption but not forgery.
func NewCodec(secret []byte) *Codec {
	k := make([]byte, len(secret))
	copy(k, secret)
	return &Codec{key: k}
}

// Encode serializes p.
func (c *Codec) Encode(p models.Position) string {
	buf := make([]byte, headSize, headSize+len(p.ID)+tagSize)
	buf[0] = version
	binary.BigEndian.PutUint64(buf[1:headSize], uint64(p.UpdatedAt.UnixMicro()))
	buf = append(buf, p.ID...)
	buf = append(buf, c.tag(buf)...)
	return encoding.EncodeToString(buf)
}

// Decode parses a token produced by Encode.
func (c *Codec) Decode(token string) (models.Position, error) {
	var p models.Position

	raw, err := encoding.DecodeString(token)
	if err != nil {
		return p, fmt.Errorf("%w: not base64url", common.ErrInvalidCursor)
	}
	if len(raw) <= headSize+tagSize || len(raw) > headSize+maxIDLen+tagSize {
		return p, fmt.Errorf("%w: bad length", common.ErrInvalidCursor)
	}
	if raw[0] != version {
		return p, fmt.Errorf("%w: unsupported version %d", common.ErrInvalidCursor, raw[0])
	}

	body, tag := raw[:len(raw)-tagSize], raw[len(raw)-tagSize:]
	if !hmac.Equal(tag, c.tag(body)) {
		return p, fmt.Errorf("%w: signature mismatch", common.ErrInvalidCursor)
	}

	id := body[headSize:]
	if !utf8.Valid(id) {
		return p, fmt.Errorf("%w: id is not utf-8", common.ErrInvalidCursor)
	}

	micros := int64(binary.BigEndian.Uint64(body[1:headSize]))
	p.UpdatedAt = time.UnixMicro(micros).UTC()
	p.ID = string(id)
	return p, nil
}

func (c *Codec) tag(b []byte) []byte {
	mac := hmac.New(sha256.New, c.key)
	mac.Write(b)
	return mac.Sum(nil)[:tagSize]
}
