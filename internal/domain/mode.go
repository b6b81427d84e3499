package domain

import "strings"

// Mode selects which ruleset/personality governs a conversation.
type Mode string

const (
	ModeBase  Mode = "BASE"
	ModeVIP   Mode = "VIP"
	ModeEvent Mode = "EVENT"
	// ModePromo is only reachable through an explicit rule-key override.
	ModePromo Mode = "PROMO"
)

type modeInfo struct {
	storageKey string
	ruleFile   string
}

// modes is the closed table of known modes. Storage keys follow RULES_<MODE>.
var modes = map[Mode]modeInfo{
	ModeBase:  {storageKey: "RULES_BASE", ruleFile: "base.md"},
	ModeVIP:   {storageKey: "RULES_VIP", ruleFile: "vip.md"},
	ModeEvent: {storageKey: "RULES_EVENT", ruleFile: "event.md"},
	ModePromo: {storageKey: "RULES_PROMO", ruleFile: "promo.md"},
}

// ParseMode accepts a mode name in any case. The empty string maps to BASE.
func ParseMode(s string) (Mode, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return ModeBase, true
	}
	m := Mode(s)
	if _, ok := modes[m]; !ok {
		return "", false
	}
	return m, true
}

// Normalize maps the zero value and unknown values to BASE.
func (m Mode) Normalize() Mode {
	if _, ok := modes[m]; ok {
		return m
	}
	return ModeBase
}

// StorageKey is the key under which an override for m is persisted.
func (m Mode) StorageKey() string {
	return modes[m.Normalize()].storageKey
}

// RuleFile is the bundled default rule resource for m.
func (m Mode) RuleFile() string {
	return modes[m.Normalize()].ruleFile
}

// AllModes lists the known modes in a stable order.
func AllModes() []Mode {
	return []Mode{ModeBase, ModeVIP, ModeEvent, ModePromo}
}
