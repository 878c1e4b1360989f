package search

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postbase/internal/post/model"
)

func TestCursorRoundtrip(t *testing.T) {
	codec := NewCodec("secret")
	in := cursor{
		SortKey:  time.Now().UnixNano(),
		DocID:    "doc-42",
		PageSize: 25,
		Filter:   Fingerprint("Exam"),
	}

	token := codec.Encode(in)
	out, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCursorTamperDetected(t *testing.T) {
	codec := NewCodec("secret")
	token := codec.Encode(cursor{SortKey: 1, DocID: "a", PageSize: 25, Filter: Fingerprint("")})

	// Flip a character in the payload half.
	mutated := []byte(token)
	if mutated[0] == 'A' {
		mutated[0] = 'B'
	} else {
		mutated[0] = 'A'
	}
	_, err := codec.Decode(string(mutated))
	assert.ErrorIs(t, err, model.ErrInvalidCursor)
}

func TestCursorWrongSecretRejected(t *testing.T) {
	token := NewCodec("one").Encode(cursor{SortKey: 1, DocID: "a", PageSize: 25})
	_, err := NewCodec("two").Decode(token)
	assert.ErrorIs(t, err, model.ErrInvalidCursor)
}

func TestCursorGarbageRejected(t *testing.T) {
	codec := NewCodec("secret")
	for _, token := range []string{"", "garbage", "a.b", "!!!.???", strings.Repeat("x", 500)} {
		_, err := codec.Decode(token)
		assert.ErrorIs(t, err, model.ErrInvalidCursor, "token %q", token)
	}
}

func TestFingerprintNormalizes(t *testing.T) {
	assert.Equal(t, Fingerprint("Exam"), Fingerprint("  exam "))
	assert.NotEqual(t, Fingerprint("Exam"), Fingerprint("Example"))
	assert.NotEmpty(t, Fingerprint(""))
}
