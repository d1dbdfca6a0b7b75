package classifier

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lofty-concierge/server/internal/agent/model"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	p, err := model.DefaultDialoguePolicy()
	require.NoError(t, err)
	return New(p, "#lofty-ops")
}

func TestSegment(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		name    string
		current model.Segment
		text    string
		want    model.Segment
	}{
		{"realtor keyword", model.SegmentUnset, "I want to sell my house, what's the ROI on a quick refresh?", model.SegmentRealtor},
		{"homeowner default", model.SegmentUnset, "I want to renovate my kitchen", model.SegmentHomeowner},
		{"multi word keyword", model.SegmentUnset, "What is the market value after paint?", model.SegmentRealtor},
		{"hyphenated keyword", model.SegmentUnset, "Do you do pre-listing work?", model.SegmentRealtor},
		{"no partial word match", model.SegmentUnset, "My agenda is open next week", model.SegmentHomeowner},
		{"plural investors", model.SegmentUnset, "I work with investors flipping houses", model.SegmentRealtor},
		{"plural agents and listings", model.SegmentUnset, "We are agents with several listings", model.SegmentRealtor},
		{"plural brokers", model.SegmentUnset, "Our brokers need a quick turnaround", model.SegmentRealtor},
		{"plural clients", model.SegmentUnset, "Two of my clients want a refresh", model.SegmentRealtor},
		{"keyword inside a word", model.SegmentUnset, "The reagent stained my counter", model.SegmentHomeowner},
		{"sticky homeowner", model.SegmentHomeowner, "I'm a broker with a listing", model.SegmentHomeowner},
		{"sticky realtor", model.SegmentRealtor, "I want to renovate my kitchen", model.SegmentRealtor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Segment(tt.current, tt.text))
		})
	}
}

func TestIntentPriority(t *testing.T) {
	c := newTestClassifier(t)

	assert.Equal(t, model.IntentHandoff, c.Intent("How much does it cost? I want to talk to someone"))
	assert.Equal(t, model.IntentStartProject, c.Intent("I want to renovate my kitchen"))
	assert.Equal(t, model.IntentPricing, c.Intent("How much is a bathroom?"))
	assert.Equal(t, model.IntentPermits, c.Intent("Do you handle the HOA?"))
	assert.Equal(t, model.IntentStatus, c.Intent("Can I get an update on my project"))
	assert.Equal(t, model.IntentStartProject, c.Intent("Can you send me a few quotes?"))
	assert.Equal(t, model.IntentDesign, c.Intent("We love modern designs"))
	assert.Equal(t, model.IntentGeneral, c.Intent("Hello there"))
}

func TestClassifyAdmin(t *testing.T) {
	c := newTestClassifier(t)
	session := &model.Session{Segment: model.SegmentUnset}

	got := c.Classify(session, "#LOFTY-OPS list the failed quotes #lofty-ops")
	assert.True(t, got.Admin)
	assert.Equal(t, "list the failed quotes", got.Text)
	assert.Equal(t, model.SegmentUnset, got.Segment)
	assert.NotContains(t, got.Text, "lofty-ops")

	got = c.Classify(&model.Session{Segment: model.SegmentRealtor}, "I want to renovate")
	assert.False(t, got.Admin)
	assert.Equal(t, model.SegmentRealtor, got.Segment)
	assert.Equal(t, model.IntentStartProject, got.Intent)
}

func TestStickySegmentNeverChanges(t *testing.T) {
	c := newTestClassifier(t)
	texts := []string{
		"I'm a realtor with a listing",
		"renovate my kitchen",
		"what's the commission",
		"",
		"!!!",
	}
	for _, seg := range []model.Segment{model.SegmentHomeowner, model.SegmentRealtor} {
		for _, text := range texts {
			assert.Equal(t, seg, c.Classify(&model.Session{Segment: seg}, text).Segment, text)
		}
	}
}

func TestStripAdminWithCaseFoldingRunes(t *testing.T) {
	c := newTestClassifier(t)

	inputs := []string{
		strings.Repeat("\u212A", 10) + " #lofty-ops show leads",
		strings.Repeat("\u212A", 4) + " #LOFTY-OPS show leads",
		"\u0130\u0130\u0130\u0130 #lofty-ops show leads",
		"show leads #Lofty-Ops \u00e9t\u00e9",
	}
	for _, in := range inputs {
		got := c.Classify(&model.Session{}, in)
		assert.True(t, got.Admin, in)
		assert.True(t, utf8.ValidString(got.Text), in)
		assert.NotContains(t, strings.ToLower(got.Text), "lofty-ops", in)
		assert.Contains(t, got.Text, "show leads", in)
	}

	got := c.Classify(&model.Session{}, "\u0130\u0130 #lofty-ops show leads")
	assert.Equal(t, "\u0130\u0130 show leads", got.Text)
}

func TestStripAdminWithoutSecret(t *testing.T) {
	p, err := model.DefaultDialoguePolicy()
	require.NoError(t, err)
	c := New(p, "  ")

	text, admin := c.StripAdmin("  #lofty-ops hello ")
	assert.False(t, admin)
	assert.Equal(t, "#lofty-ops hello", text)
}
