package classifier

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/lofty-concierge/server/internal/agent/model"
)

// Classifier assigns the sticky segment and the per-turn intent of a message.
// It holds only read-only rule tables and is safe for concurrent use.
type Classifier struct {
	realtor []string
	intents []compiledRule
	// admin matches the secret case-insensitively; nil when no secret is set.
	admin *regexp.Regexp
}

type compiledRule struct {
	intent   model.Intent
	keywords []string
}

func New(policy *model.DialoguePolicy, adminSecret string) *Classifier {
	c := &Classifier{}
	if secret := strings.TrimSpace(adminSecret); secret != "" {
		c.admin = regexp.MustCompile("(?i)" + regexp.QuoteMeta(secret))
	}
	for _, kw := range policy.Segments.RealtorKeywords {
		if k := keyword(kw); k != "" {
			c.realtor = append(c.realtor, k)
		}
	}
	for _, r := range policy.Intents {
		rule := compiledRule{intent: r.Intent}
		for _, kw := range r.Keywords {
			if k := keyword(kw); k != "" {
				rule.keywords = append(rule.keywords, k)
			}
		}
		c.intents = append(c.intents, rule)
	}
	return c
}

// Classify resolves segment, intent and admin mode for the latest user text.
// Admin turns keep whatever segment the session already has.
func (c *Classifier) Classify(session *model.Session, text string) model.Classification {
	var current model.Segment
	if session != nil {
		current = session.Segment
	}

	clean, admin := c.StripAdmin(text)
	out := model.Classification{
		Admin:  admin,
		Text:   clean,
		Intent: c.Intent(clean),
	}
	if admin {
		out.Segment = current
		return out
	}
	out.Segment = c.Segment(current, clean)
	return out
}

// Segment returns current when already set, otherwise realtor if any realtor keyword
// starts a word of text. "agent" matches "agents" but not "reagent".
func (c *Classifier) Segment(current model.Segment, text string) model.Segment {
	if current != model.SegmentUnset {
		return current
	}
	norm := normalize(text)
	for _, kw := range c.realtor {
		if strings.Contains(norm, kw) {
			return model.SegmentRealtor
		}
	}
	return model.SegmentHomeowner
}

// Intent returns the first rule with a keyword starting a word of text, in policy order.
func (c *Classifier) Intent(text string) model.Intent {
	norm := normalize(text)
	for _, r := range c.intents {
		for _, kw := range r.keywords {
			if strings.Contains(norm, kw) {
				return r.intent
			}
		}
	}
	return model.IntentGeneral
}

// StripAdmin removes every occurrence of the admin secret and reports whether one was found.
func (c *Classifier) StripAdmin(text string) (string, bool) {
	if c.admin == nil || !c.admin.MatchString(text) {
		return strings.TrimSpace(text), false
	}
	stripped := c.admin.ReplaceAllLiteralString(text, " ")
	return strings.Join(strings.Fields(stripped), " "), true
}

// keyword normalizes kw for prefix matching against normalize output.
// It returns "" for keywords with no letters or digits.
func keyword(kw string) string {
	return strings.TrimRight(normalize(kw), " ")
}

// normalize lower-cases s, turns punctuation into spaces and pads it so that
// keywords match at word starts with a plain substring test.
func normalize(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return " " + strings.Join(fields, " ") + " "
}
