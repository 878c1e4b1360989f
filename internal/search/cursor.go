package search

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"

	"postbase/internal/post/model"
)

// cursor is the decoded resume point of a scroll. SortKey/DocID locate the
// last item of the previous page; Filter pins the token to the filter text
// it was issued for.
type cursor struct {
	SortKey  int64  `json:"k"` // UpdatedAt in unix nanoseconds
	DocID    string `json:"d"`
	PageSize int    `json:"n"`
	Filter   string `json:"f"` // filter fingerprint
}

// Codec produces opaque, tamper-evident cursor tokens. Tokens carry no
// server-side state: any process with the same secret and index generation
// continues the scroll.
type Codec struct {
	secret []byte
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

const macLen = 12

func (c *Codec) Encode(cur cursor) string {
	payload, _ := json.Marshal(cur)
	mac := c.sign(payload)
	return base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString(mac)
}

func (c *Codec) Decode(token string) (cursor, error) {
	var cur cursor
	payloadPart, macPart, ok := strings.Cut(token, ".")
	if !ok {
		return cur, model.ErrInvalidCursor
	}
	payload, err := base64.RawURLEncoding.DecodeString(payloadPart)
	if err != nil {
		return cur, model.ErrInvalidCursor
	}
	mac, err := base64.RawURLEncoding.DecodeString(macPart)
	if err != nil {
		return cur, model.ErrInvalidCursor
	}
	if !hmac.Equal(mac, c.sign(payload)) {
		return cur, model.ErrInvalidCursor
	}
	if err := json.Unmarshal(payload, &cur); err != nil {
		return cur, model.ErrInvalidCursor
	}
	if cur.PageSize <= 0 {
		return cur, model.ErrInvalidCursor
	}
	return cur, nil
}

func (c *Codec) sign(payload []byte) []byte {
	h := hmac.New(sha256.New, c.secret)
	h.Write(payload)
	return h.Sum(nil)[:macLen]
}

// Fingerprint reduces a filter text to a short digest embedded in cursors,
// so a token issued for one search cannot continue a different one.
func Fingerprint(filterText string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(filterText))))
	return hex.EncodeToString(sum[:6])
}
