package middleware

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateMessageContent(t *testing.T) {
	assert.NoError(t, ValidateMessageContent("hello"))
	assert.Error(t, ValidateMessageContent(""))
	assert.Error(t, ValidateMessageContent(strings.Repeat("a", 100001)))
	assert.Error(t, ValidateMessageContent(string([]byte{0xff, 0xfe})))
}

func TestValidateThreadID(t *testing.T) {
	assert.NoError(t, ValidateThreadID("0191e2a4-0000-7000-8000-000000000000"))
	assert.Error(t, ValidateThreadID("not-a-uuid"))
	assert.Error(t, ValidateThreadID(""))
}
