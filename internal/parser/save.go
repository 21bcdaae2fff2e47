package parser

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"grimm.is/bbfw/internal/ruleset"
)

// ParseSave reads iptables-save output.
func ParseSave(r io.Reader, opts ...Option) (*ruleset.Ruleset, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}
	return ParseSaveLines(lines, opts...)
}

// ParseSaveLines parses iptables-save output already split into lines.
//
// The grammar is:
//
//	*table
//	:chain policy [packets:bytes]
//	-A chain rule...
//	COMMIT
//
// Blank lines and lines starting with # are ignored. Anything else, a
// table opened twice without COMMIT or a table left open at the end of
// input is a *ParseError.
func ParseSaveLines(lines []string, opts ...Option) (*ruleset.Ruleset, error) {
	o := newOptions("save", opts)
	rs := o.newRuleset()

	var (
		table *ruleset.Table
		buf   *tableBuffer
		open  int
	)
	fail := func(n int, text string, err error) error {
		pe := &ParseError{Line: n, Text: text, Err: err}
		if table != nil {
			pe.Table = table.Name()
		}
		return pe
	}

	for i, raw := range lines {
		n := i + 1
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "*"):
			if table != nil {
				return nil, fail(n, line, ErrNestedTable)
			}
			name := strings.TrimPrefix(line, "*")
			t, err := rs.EnsureTable(name)
			if err != nil {
				return nil, fail(n, line, ErrUnknownTable)
			}
			table, buf, open = t, newTableBuffer(name), n

		case line == "COMMIT":
			if table == nil {
				return nil, fail(n, line, ErrNoTable)
			}
			assemble(table, buf, o)
			table, buf = nil, nil

		case strings.HasPrefix(line, ":"):
			if table == nil {
				return nil, fail(n, line, ErrNoTable)
			}
			fields := strings.Fields(strings.TrimPrefix(line, ":"))
			if len(fields) == 0 {
				return nil, fail(n, line, ErrUnexpectedLine)
			}
			if !table.CanContainChain(fields[0]) {
				return nil, fail(n, line, ErrUnknownChain)
			}
			policy := ""
			if len(fields) > 1 {
				policy = fields[1]
			}
			buf.setPolicy(fields[0], policy)

		case strings.HasPrefix(line, "-") || strings.HasPrefix(line, "["):
			if table == nil {
				return nil, fail(n, line, ErrNoTable)
			}
			chain, rule, ok := splitAppend(line)
			if !ok {
				return nil, fail(n, line, ErrUnexpectedLine)
			}
			if !table.CanContainChain(chain) {
				return nil, fail(n, line, ErrUnknownChain)
			}
			buf.add(chain, rule)

		default:
			return nil, fail(n, line, ErrUnexpectedLine)
		}
	}

	if table != nil {
		return nil, &ParseError{Line: open, Table: table.Name(), Err: ErrUncommitted}
	}
	return rs, nil
}

// splitAppend splits "-A chain rest" into the chain name and the rule text.
// A leading "[packets:bytes]" counter, as written by iptables-save -c, is
// dropped.
func splitAppend(line string) (chain, rule string, ok bool) {
	fields := strings.Fields(line)
	if len(fields) > 0 && strings.HasPrefix(fields[0], "[") {
		fields = fields[1:]
	}
	if len(fields) < 2 || fields[0] != ruleset.AppendFlag {
		return "", "", false
	}
	return fields[1], strings.Join(fields[2:], " "), true
}
