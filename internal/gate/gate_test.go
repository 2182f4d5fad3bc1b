package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"zedvoice/internal/domain"
)

func TestEvaluate(t *testing.T) {
	t.Parallel()

	g := New(Config{})

	cases := []struct {
		name    string
		text    string
		state   domain.ConversationState
		action  Action
		payload string
	}{
		{"wake with query", "hey zed what is variance", domain.ConversationWaiting, ActionActivate, "what is variance"},
		{"wake keeps original case", "Hey Zed, What is a Z-score?", domain.ConversationWaiting, ActionActivate, "What is a Z-score?"},
		{"wake alone", "hey zed", domain.ConversationWaiting, ActionAcknowledge, ""},
		{"wake with short tail", "hey zed, ok", domain.ConversationWaiting, ActionAcknowledge, ""},
		{"misheard wake", "hey said explain regression", domain.ConversationWaiting, ActionActivate, "explain regression"},
		{"no wake while waiting", "what is variance", domain.ConversationWaiting, ActionIgnore, ""},
		{"empty while waiting", "", domain.ConversationWaiting, ActionIgnore, ""},
		{"active dispatches", "what is variance", domain.ConversationActive, ActionDispatch, "what is variance"},
		{"active dispatches wake text verbatim", "hey zed what now", domain.ConversationActive, ActionDispatch, "hey zed what now"},
		{"end while active", "thank you zed", domain.ConversationActive, ActionEnd, "thank you zed"},
		{"end while waiting", "ok goodbye zed", domain.ConversationWaiting, ActionEnd, "ok goodbye zed"},
		{"end beats wake", "hey zed thank you zed", domain.ConversationWaiting, ActionEnd, "hey zed thank you zed"},
		{"end is case insensitive", "THANKS ZED!", domain.ConversationActive, ActionEnd, "THANKS ZED!"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := g.Evaluate(tc.text, tc.state)
			assert.Equal(t, tc.action, got.Action)
			assert.Equal(t, tc.payload, got.Payload)
		})
	}
}

func TestEarliestLongestWakeVariant(t *testing.T) {
	t.Parallel()

	g := New(Config{})
	got := g.Evaluate("hey zedd how are you", domain.ConversationWaiting)
	assert.Equal(t, "hey zedd", got.Phrase)
	assert.Equal(t, "how are you", got.Payload)
}

func TestWakeVariantsNeedWordBoundaries(t *testing.T) {
	t.Parallel()

	g := New(Config{})
	for _, text := range []string{
		"they went home early",
		"I realized it",
		"whey protein is good for you",
		"the zebra is striped and zed",
		"they said it rained",
		"hey zebra crossing ahead",
	} {
		assert.Equal(t, ActionIgnore, g.Evaluate(text, domain.ConversationWaiting).Action, text)
	}

	got := g.Evaluate("Hey, Zed what is a mode", domain.ConversationWaiting)
	assert.Equal(t, ActionActivate, got.Action)
	assert.Equal(t, "hey, zed", got.Phrase)
	assert.Equal(t, "what is a mode", got.Payload)
}

func TestEndPhrasesNeedWordBoundaries(t *testing.T) {
	t.Parallel()

	g := New(Config{})
	assert.Equal(t, ActionEnd, g.Evaluate("ok goodbye", domain.ConversationActive).Action)
	assert.Equal(t, ActionDispatch, g.Evaluate("what do goodbyes mean in german", domain.ConversationActive).Action)
	assert.Equal(t, ActionDispatch, g.Evaluate("is the swim done timing accurate", domain.ConversationActive).Action)
}

func TestWaitingNeverDispatches(t *testing.T) {
	t.Parallel()

	g := New(Config{})
	for _, text := range []string{"what is variance", "tell me about means", "ok", "mean median mode"} {
		got := g.Evaluate(text, domain.ConversationWaiting)
		assert.NotEqual(t, ActionDispatch, got.Action, text)
		assert.NotEqual(t, ActionActivate, got.Action, text)
	}
}

func TestCustomPhrasesAndMinLength(t *testing.T) {
	t.Parallel()

	g := New(Config{
		WakePhrases:    []string{"  Computer "},
		EndPhrases:     []string{"over and out"},
		MinQueryLength: 10,
	})

	assert.Equal(t, ActionAcknowledge, g.Evaluate("computer, hi there", domain.ConversationWaiting).Action)
	assert.Equal(t, ActionActivate, g.Evaluate("computer, what is a median", domain.ConversationWaiting).Action)
	assert.Equal(t, ActionIgnore, g.Evaluate("hey zed what is variance", domain.ConversationWaiting).Action)
	assert.Equal(t, ActionEnd, g.Evaluate("over and out", domain.ConversationActive).Action)
	assert.Equal(t, ActionDispatch, g.Evaluate("thank you zed", domain.ConversationActive).Action)
}

func TestUnicodeLoweringFallsBackToLoweredPayload(t *testing.T) {
	t.Parallel()

	g := New(Config{})
	// "İ" lowers to a longer byte sequence.
	got := g.Evaluate("İ hey zed ok then", domain.ConversationWaiting)
	assert.Equal(t, ActionActivate, got.Action)
	assert.Equal(t, "ok then", got.Payload)
}
