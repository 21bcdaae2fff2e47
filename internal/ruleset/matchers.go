package ruleset

import (
	"slices"
	"strings"
)

// Matcher decides whether two properties are semantically the same.
type Matcher func(this, that Property) bool

// NamedMatcher pairs a property name with its matcher.
type NamedMatcher struct {
	Name    string
	Matcher Matcher
}

// Registry maps property names to matchers. The first registration for a
// name wins; later ones are ignored.
type Registry struct {
	matchers map[string]Matcher
}

// NewRegistry returns a registry holding extra followed by the builtin
// matchers. Since the first registration wins, extras cannot replace a
// builtin matcher.
func NewRegistry(extra ...NamedMatcher) *Registry {
	r := &Registry{matchers: make(map[string]Matcher)}
	for _, m := range extra {
		r.Register(m.Name, m.Matcher)
	}
	registerBuiltins(r)
	return r
}

// DefaultRegistry returns a fresh registry with only the builtin matchers.
func DefaultRegistry() *Registry {
	return NewRegistry()
}

// Register adds m for name unless a matcher is already registered.
// It reports whether m was added.
func (r *Registry) Register(name string, m Matcher) bool {
	if _, ok := r.matchers[name]; ok || m == nil {
		return false
	}
	r.matchers[name] = m
	return true
}

// Lookup returns the matcher for p.Name, or DefaultMatcher.
func (r *Registry) Lookup(p Property) Matcher {
	if r != nil {
		if m, ok := r.matchers[p.Name]; ok {
			return m
		}
	}
	return DefaultMatcher
}

// Has reports whether a matcher is registered for name.
func (r *Registry) Has(name string) bool {
	_, ok := r.matchers[name]
	return ok
}

// DefaultMatcher compares name and value textually.
func DefaultMatcher(this, that Property) bool {
	return this == that
}

var (
	sourceNames      = []string{"-s", "--src", "--source"}
	destinationNames = []string{"-d", "--dst", "--destination"}
	protocolNames    = []string{"-p", "--protocol"}
	moduleNames      = []string{"-m", "--match", "--module"}
	markNames        = []string{"--set-mark", "--set-xmark"}
)

func registerBuiltins(r *Registry) {
	for _, n := range markNames {
		r.Register(n, MarkMatcher)
	}
	for _, n := range sourceNames {
		r.Register(n, AddressMatcher(sourceNames))
	}
	for _, n := range destinationNames {
		r.Register(n, AddressMatcher(destinationNames))
	}
	for _, n := range protocolNames {
		r.Register(n, ProtocolMatcher)
	}
	for _, n := range moduleNames {
		r.Register(n, ModuleMatcher)
	}
	r.Register("--comment", CommentMatcher)
	r.Register("--tcp-flags", TCPFlagsMatcher)
	r.Register("--icmp-type", ICMPTypeMatcher)
	r.Register("--rsource", IgnoreValueMatcher)
}

// MarkMatcher treats --set-mark X as --set-xmark X/0xffffffff.
func MarkMatcher(this, that Property) bool {
	a, b := normalizeMark(this), normalizeMark(that)
	return a.Name == b.Name && a.Value == b.Value
}

func normalizeMark(p Property) Property {
	if p.Name != "--set-mark" {
		return p
	}
	value := p.Value
	if !strings.Contains(value, "/") {
		value += "/0xffffffff"
	}
	return NewProperty("--set-xmark", value)
}

// AddressMatcher matches addresses given under any of the alias names,
// treating a bare host address as a /32 (or /128) network.
func AddressMatcher(aliases []string) Matcher {
	return func(this, that Property) bool {
		if !slices.Contains(aliases, this.Name) || !slices.Contains(aliases, that.Name) {
			return false
		}
		return normalizeAddress(this.Value) == normalizeAddress(that.Value)
	}
}

func normalizeAddress(value string) string {
	if value == "" || strings.Contains(value, "/") {
		return value
	}
	if strings.Contains(value, ":") {
		return value + "/128"
	}
	return value + "/32"
}

// ProtocolMatcher compares protocols with the same suffixing used for
// addresses, so "tcp" equals "tcp/32".
func ProtocolMatcher(this, that Property) bool {
	if !slices.Contains(protocolNames, this.Name) || !slices.Contains(protocolNames, that.Name) {
		return false
	}
	return normalizeProtocol(this.Value) == normalizeProtocol(that.Value)
}

func normalizeProtocol(value string) string {
	if value == "" || strings.Contains(value, "/") {
		return value
	}
	return value + "/32"
}

var coreProtocols = []string{"tcp", "udp", "icmp"}

// ModuleMatcher considers any two core protocol modules equal; iptables-save
// adds "-m tcp" on its own and the protocol itself is checked by -p.
func ModuleMatcher(this, that Property) bool {
	if !slices.Contains(moduleNames, this.Name) || !slices.Contains(moduleNames, that.Name) {
		return false
	}
	if slices.Contains(coreProtocols, this.Value) && slices.Contains(coreProtocols, that.Value) {
		return true
	}
	return this.Value == that.Value
}

// CommentMatcher ignores quoting differences in comments.
func CommentMatcher(this, that Property) bool {
	if this.Name != that.Name {
		return false
	}
	return quote(this.Value) == quote(that.Value)
}

func quote(value string) string {
	if strings.HasPrefix(value, `"`) {
		return value
	}
	return `"` + value + `"`
}

var allTCPFlags = []string{"FIN", "SYN", "RST", "PSH", "ACK", "URG"}

// TCPFlagsMatcher compares "MASK COMP" flag lists as sets.
func TCPFlagsMatcher(this, that Property) bool {
	if this.Name != that.Name {
		return false
	}
	a, b := strings.Fields(this.Value), strings.Fields(that.Value)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sameSet(flagSet(a[i]), flagSet(b[i])) {
			return false
		}
	}
	return true
}

func flagSet(group string) map[string]bool {
	set := make(map[string]bool)
	for _, f := range strings.Split(group, ",") {
		f = strings.ToUpper(strings.TrimSpace(f))
		switch f {
		case "":
		case "NONE":
		case "ALL":
			for _, all := range allTCPFlags {
				set[all] = true
			}
		default:
			set[f] = true
		}
	}
	return set
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

var icmpTypes = map[string]string{
	"echo-reply":              "0",
	"destination-unreachable": "3",
	"source-quench":           "4",
	"redirect":                "5",
	"echo-request":            "8",
	"time-exceeded":           "10",
	"parameter-problem":       "11",
}

// ICMPTypeMatcher maps symbolic ICMP types to their numeric codes.
func ICMPTypeMatcher(this, that Property) bool {
	if this.Name != that.Name {
		return false
	}
	return icmpCode(this.Value) == icmpCode(that.Value)
}

func icmpCode(value string) string {
	if code, ok := icmpTypes[strings.ToLower(value)]; ok {
		return code
	}
	return value
}

// IgnoreValueMatcher matches properties by name only.
func IgnoreValueMatcher(this, that Property) bool {
	return this.Name == that.Name
}

// QuotedMatcher is CommentMatcher for arbitrary text properties.
func QuotedMatcher(this, that Property) bool {
	return CommentMatcher(this, that)
}

// CaseInsensitiveMatcher compares values ignoring case.
func CaseInsensitiveMatcher(this, that Property) bool {
	return this.Name == that.Name && this.HasValue == that.HasValue && strings.EqualFold(this.Value, that.Value)
}
