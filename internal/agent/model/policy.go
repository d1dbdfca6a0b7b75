package model

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed policy_default.yaml
var defaultPolicyYAML []byte

// IntentRule maps a keyword set to an intent. Rules are evaluated in order.
type IntentRule struct {
	Intent   Intent   `yaml:"intent"`
	Keywords []string `yaml:"keywords"`
	Guidance string   `yaml:"guidance"`
}

// ScriptStep is one verbatim step of the discovery script and the substrings
// that identify it in a previous assistant message.
type ScriptStep struct {
	Text     string   `yaml:"text"`
	Triggers []string `yaml:"triggers"`
}

type ScriptPolicy struct {
	Style    ScriptStep `yaml:"style"`
	Timeline ScriptStep `yaml:"timeline"`
	Booking  ScriptStep `yaml:"booking"`
}

// ConversionPolicy fires on the At-th human message and every Every-th after it,
// or on every message once Minimum is reached. Zero disables a clause.
type ConversionPolicy struct {
	At             int    `yaml:"at"`
	Every          int    `yaml:"every"`
	Minimum        int    `yaml:"minimum"`
	CallToAction   string `yaml:"call_to_action"`
	VerbatimSuffix string `yaml:"verbatim_suffix"`
}

// Due reports whether the call to action must be appended at the given human message count.
func (p ConversionPolicy) Due(count int) bool {
	if count <= 0 {
		return false
	}
	if p.Minimum > 0 && count >= p.Minimum {
		return true
	}
	if p.At <= 0 {
		return false
	}
	if count == p.At {
		return true
	}
	return p.Every > 0 && count > p.At && (count-p.At)%p.Every == 0
}

type SegmentPolicy struct {
	RealtorKeywords []string           `yaml:"realtor_keywords"`
	Bias            map[Segment]string `yaml:"bias"`
}

// DialoguePolicy holds every tunable table the dialogue relies on.
// It is read-only after load and shared across turns.
type DialoguePolicy struct {
	Placeholder string            `yaml:"placeholder"`
	EmptyReply  string            `yaml:"empty_reply"`
	Apology     string            `yaml:"apology"`
	BookingLink string            `yaml:"booking_link"`
	BrandRules  string            `yaml:"brand_rules"`
	Segments    SegmentPolicy     `yaml:"segments"`
	Intents     []IntentRule      `yaml:"intents"`
	Script      ScriptPolicy      `yaml:"script"`
	Conversion  ConversionPolicy  `yaml:"conversion"`
	Platforms   map[string]string `yaml:"platforms"`
	Realtor     struct {
		Focus string `yaml:"focus"`
	} `yaml:"realtor"`
	Admin struct {
		Instruction string `yaml:"instruction"`
	} `yaml:"admin"`
	QuickReplies []QuickReply `yaml:"quick_replies"`
}

// Guidance returns the topic guidance configured for an intent.
func (p *DialoguePolicy) Guidance(intent Intent) string {
	for _, r := range p.Intents {
		if r.Intent == intent {
			return r.Guidance
		}
	}
	return ""
}

// DefaultDialoguePolicy returns the embedded policy.
func DefaultDialoguePolicy() (*DialoguePolicy, error) {
	var p DialoguePolicy
	if err := yaml.Unmarshal(defaultPolicyYAML, &p); err != nil {
		return nil, fmt.Errorf("parse default dialogue policy: %w", err)
	}
	return &p, nil
}

// LoadDialoguePolicy parses the embedded policy and overlays the operator file when path is set.
func LoadDialoguePolicy(path string) (*DialoguePolicy, error) {
	p, err := DefaultDialoguePolicy()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read dialogue policy %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, p); err != nil {
			return nil, fmt.Errorf("parse dialogue policy %s: %w", path, err)
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks that the scripted texts and fallbacks are present.
func (p *DialoguePolicy) Validate() error {
	required := map[string]string{
		"placeholder":     p.Placeholder,
		"empty_reply":     p.EmptyReply,
		"apology":         p.Apology,
		"script.style":    p.Script.Style.Text,
		"script.timeline": p.Script.Timeline.Text,
		"script.booking":  p.Script.Booking.Text,
	}
	for name, v := range required {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("dialogue policy: %s must not be empty", name)
		}
	}
	return nil
}
