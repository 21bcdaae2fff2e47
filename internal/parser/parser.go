// Package parser builds rulesets from the two on-disk grammars: the
// iptables-save dump and the configuration directory of per-chain files.
//
// Both front ends collect lines into a per-table buffer and hand it to the
// same assembly step, which builds builtin chains first and pulls in user
// chains lazily as jump targets reference them.
package parser

import (
	"errors"
	"fmt"

	"grimm.is/bbfw/internal/logging"
	"grimm.is/bbfw/internal/ruleset"
)

var (
	ErrUnknownTable   = ruleset.ErrUnknownTable
	ErrNestedTable    = errors.New("table opened before previous COMMIT")
	ErrNoTable        = errors.New("line outside of a table")
	ErrUnknownChain   = errors.New("chain not valid for table")
	ErrUnexpectedLine = errors.New("unexpected line")
	ErrUncommitted    = errors.New("table not committed")
)

// ParseError is a fatal grammar error. Line is 1-based; it is zero when the
// error concerns a whole file or directory.
type ParseError struct {
	Source string
	Line   int
	Table  string
	Text   string
	Err    error
}

func (e *ParseError) Error() string {
	msg := e.Err.Error()
	if e.Text != "" {
		msg = fmt.Sprintf("%s: %q", msg, e.Text)
	}
	if e.Table != "" {
		msg = fmt.Sprintf("table %s: %s", e.Table, msg)
	}
	if e.Line > 0 {
		msg = fmt.Sprintf("line %d: %s", e.Line, msg)
	}
	if e.Source != "" {
		msg = e.Source + ": " + msg
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// Option configures a parse.
type Option func(*options)

type options struct {
	name     string
	base     *ruleset.Ruleset
	registry *ruleset.Registry
	logger   *logging.Logger
}

// WithName sets the name of the resulting ruleset.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithBase parses on top of a copy of base. Chains that parse equal to the
// ones in base are kept, differing chains replace them.
func WithBase(base *ruleset.Ruleset) Option {
	return func(o *options) { o.base = base }
}

// WithMatchers sets the registry used to compare chains against the base.
func WithMatchers(reg *ruleset.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithLogger overrides the logger used for warnings.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

func newOptions(defaultName string, opts []Option) *options {
	o := &options{name: defaultName}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = ruleset.DefaultRegistry()
	}
	if o.logger == nil {
		o.logger = logging.WithComponent("parser")
	}
	return o
}

func (o *options) newRuleset() *ruleset.Ruleset {
	if o.base != nil {
		return o.base.Clone(o.name)
	}
	return ruleset.New(o.name)
}

// tableBuffer collects the raw lines of one table before assembly.
type tableBuffer struct {
	name     string
	order    []string
	policies map[string]string
	lines    map[string][]string
}

func newTableBuffer(name string) *tableBuffer {
	return &tableBuffer{
		name:     name,
		policies: make(map[string]string),
		lines:    make(map[string][]string),
	}
}

func (b *tableBuffer) declare(chain string) {
	if _, ok := b.lines[chain]; ok {
		return
	}
	b.lines[chain] = nil
	b.order = append(b.order, chain)
}

func (b *tableBuffer) setPolicy(chain, policy string) {
	b.declare(chain)
	b.policies[chain] = policy
}

func (b *tableBuffer) add(chain, line string) {
	b.declare(chain)
	b.lines[chain] = append(b.lines[chain], line)
}

func (b *tableBuffer) has(chain string) bool {
	_, ok := b.lines[chain]
	return ok
}

type edge struct {
	parent, child string
}

// assembler turns one table buffer into chains of dst.
type assembler struct {
	dst   *ruleset.Table
	buf   *tableBuffer
	opts  *options
	built map[string]bool
	edges []edge
}

func assemble(dst *ruleset.Table, buf *tableBuffer, o *options) {
	a := &assembler{dst: dst, buf: buf, opts: o, built: make(map[string]bool)}

	for _, name := range dst.BuiltinChains() {
		a.build(name)
	}
	for _, name := range buf.order {
		a.build(name)
	}

	for _, e := range a.edges {
		if !dst.HasChain(e.parent) || !dst.HasChain(e.child) {
			o.logger.Warn("skipping jump to undefined chain",
				"table", dst.Name(), "chain", e.parent, "target", e.child)
		}
	}
}

func (a *assembler) build(name string) {
	if a.built[name] {
		return
	}
	a.built[name] = true

	log := a.opts.logger
	table := a.dst.Name()

	if !a.dst.CanContainChain(name) {
		log.Warn("chain not valid for table, ignored", "table", table, "chain", name)
		return
	}

	c := ruleset.NewChain(table, name, a.buf.policies[name])
	for _, line := range a.buf.lines[name] {
		rule := ruleset.ParseRule(line)
		target := rule.Target()
		if !a.dst.IsTargetValid(target, name) {
			log.Warn("rule has invalid target, ignored",
				"table", table, "chain", name, "target", target, "rule", line)
			continue
		}
		c.Append(rule)

		if a.dst.IsUserTarget(target, name) {
			a.edges = append(a.edges, edge{parent: name, child: target})
			if a.buf.has(target) {
				a.build(target)
			}
		}
	}
	c.MarkComplete()

	if _, err := a.dst.MergeChain(c, a.opts.registry); err != nil {
		log.Warn("cannot install chain", "table", table, "chain", name, "error", err)
	}
}
