package ruleset

import "strings"

// AppendFlag is the property naming the chain a rule is appended to.
const AppendFlag = "-A"

// Property is one flag of a rule with its optional argument, e.g. "-p tcp"
// or a bare "!" negation.
type Property struct {
	Name     string
	Value    string
	HasValue bool
}

// NewProperty returns a property with a value.
func NewProperty(name, value string) Property {
	return Property{Name: name, Value: value, HasValue: true}
}

// NewFlag returns a property without a value.
func NewFlag(name string) Property {
	return Property{Name: name}
}

// String renders the property as it appears on a rule line.
func (p Property) String() string {
	if !p.HasValue {
		return p.Name
	}
	return p.Name + " " + p.Value
}

// Rule is an ordered list of properties parsed from one rule line.
type Rule struct {
	props []Property
}

// ParseRule tokenizes a rule line. A token starting with "-" or "!" opens a
// new property; the tokens that follow it, up to the next flag, are joined
// with single spaces to form its value.
func ParseRule(line string) *Rule {
	r := &Rule{}

	var current *Property
	var value []string
	flush := func() {
		if current == nil {
			return
		}
		if len(value) > 0 {
			current.Value = strings.Join(value, " ")
			current.HasValue = true
		}
		r.props = append(r.props, *current)
		current = nil
		value = value[:0]
	}

	for _, tok := range strings.Fields(line) {
		if isFlag(tok) {
			flush()
			current = &Property{Name: tok}
			continue
		}
		if current == nil {
			// Leading value without a flag, keep it as a bare token.
			r.props = append(r.props, Property{Name: tok})
			continue
		}
		value = append(value, tok)
	}
	flush()

	return r
}

// NewRule builds a rule from properties.
func NewRule(props ...Property) *Rule {
	r := &Rule{props: make([]Property, len(props))}
	copy(r.props, props)
	return r
}

func isFlag(tok string) bool {
	return strings.HasPrefix(tok, "-") || strings.HasPrefix(tok, "!")
}

// Properties returns a copy of the rule properties in line order.
func (r *Rule) Properties() []Property {
	out := make([]Property, len(r.props))
	copy(out, r.props)
	return out
}

// Len returns the number of properties.
func (r *Rule) Len() int {
	return len(r.props)
}

// Property returns the first property with the given name.
func (r *Rule) Property(name string) (Property, bool) {
	for _, p := range r.props {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// Value returns the value of the named property, or "" when it is missing or bare.
func (r *Rule) Value(name string) string {
	p, _ := r.Property(name)
	return p.Value
}

// Target returns the jump target of the rule. -j takes precedence over -g.
func (r *Rule) Target() string {
	if p, ok := r.Property("-j"); ok && p.HasValue {
		return p.Value
	}
	if p, ok := r.Property("-g"); ok && p.HasValue {
		return p.Value
	}
	return ""
}

// String renders the rule with every property in original order.
func (r *Rule) String() string {
	return r.Format(false)
}

// Format renders the rule. When excludeAppend is set the -A property is
// left out, since its chain is implied by where the rule is stored.
func (r *Rule) Format(excludeAppend bool) string {
	parts := make([]string, 0, len(r.props))
	for _, p := range r.props {
		if excludeAppend && p.Name == AppendFlag {
			continue
		}
		parts = append(parts, p.String())
	}
	return strings.Join(parts, " ")
}

// Equal reports whether every property of r, except -A, has a matching
// property in other according to the registry.
//
// The check is one-directional: properties present only in other are not
// looked at, so a minimal rule can match a rule the kernel decorated with
// extra matches. a.Equal(b) does not imply b.Equal(a).
func (r *Rule) Equal(other *Rule, reg *Registry) bool {
	if other == nil {
		return false
	}
	for _, this := range r.props {
		if this.Name == AppendFlag {
			continue
		}
		match := reg.Lookup(this)
		found := false
		for _, that := range other.props {
			if that.Name == AppendFlag {
				continue
			}
			if match(this, that) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
