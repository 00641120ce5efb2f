package hotkey

import (
	"fmt"
	"strings"
)

// Combo is a parsed key combination.
type Combo struct {
	Keys  []string // gohook key names, modifiers first
	Label string   // e.g. "⌘⇧Space"
}

// Presets are the combos offered by default.
var Presets = []string{
	"cmd+shift+space",
	"cmd+option+space",
	"option+space",
	"cmd+shift+r",
	"cmd+option+r",
}

type modifier struct {
	key    string
	symbol string
}

var modifiers = map[string]modifier{
	"cmd":     {"cmd", "⌘"},
	"command": {"cmd", "⌘"},
	"super":   {"cmd", "⌘"},
	"option":  {"alt", "⌥"},
	"opt":     {"alt", "⌥"},
	"alt":     {"alt", "⌥"},
	"ctrl":    {"ctrl", "⌃"},
	"control": {"ctrl", "⌃"},
	"shift":   {"shift", "⇧"},
}

// ParseCombo parses notation like "cmd+shift+space". It requires exactly
// one non-modifier key and rejects repeated modifiers.
func ParseCombo(s string) (Combo, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")

	var (
		c    Combo
		key  string
		seen = map[string]bool{}
	)
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return Combo{}, fmt.Errorf("hotkey: empty key in %q", s)
		}
		if m, ok := modifiers[p]; ok {
			if seen[m.key] {
				return Combo{}, fmt.Errorf("hotkey: modifier %q repeated in %q", p, s)
			}
			seen[m.key] = true
			c.Keys = append(c.Keys, m.key)
			c.Label += m.symbol
			continue
		}
		if key != "" {
			return Combo{}, fmt.Errorf("hotkey: more than one key in %q", s)
		}
		key = p
	}
	if key == "" {
		return Combo{}, fmt.Errorf("hotkey: no key in %q", s)
	}

	c.Keys = append(c.Keys, key)
	if len(key) == 1 {
		c.Label += strings.ToUpper(key)
	} else {
		c.Label += strings.ToUpper(key[:1]) + key[1:]
	}
	return c, nil
}
