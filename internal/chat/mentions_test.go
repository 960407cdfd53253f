package chat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/junkielabs/junkie/internal/chat"
)

func TestFormatMention(t *testing.T) {
	assert.Equal(t, "@Alex(12345)", chat.FormatMention("Alex", "12345"))
}

func TestEnforceMentionSpacing(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"exclamation", "thanks @Alex(12345)!", "thanks @Alex(12345) !"},
		{"period", "ask @Priya(777).", "ask @Priya(777) ."},
		{"already spaced", "thanks @Alex(12345) !", "thanks @Alex(12345) !"},
		{"mid sentence", "tell @Alex(12345), then wait", "tell @Alex(12345) , then wait"},
		{"no mention", "no punctuation issue here!", "no punctuation issue here!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, chat.EnforceMentionSpacing(tt.in))
		})
	}
}

func TestNormalizeInbound(t *testing.T) {
	lookup := func(id string) (string, bool) {
		if id == "12345" {
			return "Alex", true
		}
		return "", false
	}

	assert.Equal(t, "hey @Alex(12345) look at this",
		chat.NormalizeInbound("hey <@12345> look at this", lookup))
	assert.Equal(t, "hey @Alex(12345)",
		chat.NormalizeInbound("hey <@!12345>", lookup))

	// Unknown IDs keep the raw token rather than inventing a name.
	assert.Equal(t, "ping <@999>", chat.NormalizeInbound("ping <@999>", lookup))
}

func TestRestoreOutbound(t *testing.T) {
	assert.Equal(t, "thanks <@12345> !", chat.RestoreOutbound("thanks @Alex(12345) !"))
	assert.Equal(t, "<@1> and <@2>", chat.RestoreOutbound("@A(1) and @B(2)"))
}

func TestMentionsAndStrip(t *testing.T) {
	text := "ask @Alex(12345) or @Priya(777) later"
	assert.Equal(t, []string{"12345", "777"}, chat.Mentions(text))
	assert.Nil(t, chat.Mentions("nobody here"))
	assert.Equal(t, "ask Alex or Priya later", chat.StripMentions(text))
}
