package nats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "chat.CHAT_TURN_COMPLETED", Subject("CHAT_TURN_COMPLETED"))
}
