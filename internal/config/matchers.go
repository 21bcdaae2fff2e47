package config

import (
	"fmt"
	"slices"

	"grimm.is/bbfw/internal/ruleset"
)

// matcherKinds maps the kind names accepted in matcher blocks to factories
// producing a matcher for the named property.
var matcherKinds = map[string]func(name string) ruleset.Matcher{
	"exact":            func(string) ruleset.Matcher { return ruleset.DefaultMatcher },
	"ignore_value":     func(string) ruleset.Matcher { return ruleset.IgnoreValueMatcher },
	"quoted":           func(string) ruleset.Matcher { return ruleset.QuotedMatcher },
	"case_insensitive": func(string) ruleset.Matcher { return ruleset.CaseInsensitiveMatcher },
	"address":          func(name string) ruleset.Matcher { return ruleset.AddressMatcher([]string{name}) },
	"tcp_flags":        func(string) ruleset.Matcher { return ruleset.TCPFlagsMatcher },
	"icmp_type":        func(string) ruleset.Matcher { return ruleset.ICMPTypeMatcher },
}

// MatcherKinds returns the accepted kind names, sorted.
func MatcherKinds() []string {
	kinds := make([]string, 0, len(matcherKinds))
	for k := range matcherKinds {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// NamedMatchers converts the matcher blocks for ruleset.NewRegistry.
func (c *Config) NamedMatchers() ([]ruleset.NamedMatcher, error) {
	out := make([]ruleset.NamedMatcher, 0, len(c.Matchers))
	for _, m := range c.Matchers {
		factory, ok := matcherKinds[m.Kind]
		if !ok {
			return nil, fmt.Errorf("matcher %s: unknown kind %q", m.Name, m.Kind)
		}
		out = append(out, ruleset.NamedMatcher{Name: m.Name, Matcher: factory(m.Name)})
	}
	return out, nil
}

// Registry builds the matcher registry: configured matchers first, then the
// builtins.
func (c *Config) Registry() (*ruleset.Registry, error) {
	extra, err := c.NamedMatchers()
	if err != nil {
		return nil, err
	}
	return ruleset.NewRegistry(extra...), nil
}
