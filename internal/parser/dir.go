package parser

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"grimm.is/bbfw/internal/ruleset"
)

const (
	chainFileExt = ".src"
	propsFileExt = ".props"
)

// ParseDir reads a configuration directory:
//
//	<root>/<table>/<chain>.src   one rule per line, without -A
//	<root>/<table>.props         ":chain policy [counters]" lines
//
// Every non-hidden subdirectory must be named after a table. Chains that no
// rule jumps to are loaded as well. A missing or malformed props file only
// produces warnings.
func ParseDir(fsys fs.FS, opts ...Option) (*ruleset.Ruleset, error) {
	o := newOptions("config", opts)
	rs := o.newRuleset()

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	found := make(map[string]bool)
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		switch {
		case e.IsDir():
			if !ruleset.IsKnownTable(name) {
				return nil, &ParseError{Source: name, Err: ErrUnknownTable}
			}
			found[name] = true
		case strings.HasSuffix(name, propsFileExt):
			table := strings.TrimSuffix(name, propsFileExt)
			if ruleset.IsKnownTable(table) {
				found[table] = true
			} else {
				o.logger.Warn("ignoring props file for unknown table", "file", name)
			}
		}
	}

	for _, name := range ruleset.Tables {
		if !found[name] {
			continue
		}
		buf, err := readTableDir(fsys, name, o)
		if err != nil {
			return nil, err
		}
		readProps(fsys, name, buf, o)

		table, err := rs.EnsureTable(name)
		if err != nil {
			return nil, err
		}
		assemble(table, buf, o)
	}
	return rs, nil
}

func readTableDir(fsys fs.FS, table string, o *options) (*tableBuffer, error) {
	buf := newTableBuffer(table)

	entries, err := fs.ReadDir(fsys, table)
	if errors.Is(err, fs.ErrNotExist) {
		return buf, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read table directory %s: %w", table, err)
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !strings.HasSuffix(name, chainFileExt) {
			o.logger.Debug("skipping file", "table", table, "file", name)
			continue
		}
		chain := strings.TrimSuffix(name, chainFileExt)

		lines, err := readLines(fsys, path.Join(table, name))
		if err != nil {
			return nil, err
		}
		buf.declare(chain)
		for _, line := range lines {
			buf.add(chain, line)
		}
	}
	return buf, nil
}

func readProps(fsys fs.FS, table string, buf *tableBuffer, o *options) {
	file := table + propsFileExt
	lines, err := readLines(fsys, file)
	if errors.Is(err, fs.ErrNotExist) {
		o.logger.Debug("no props file", "table", table)
		return
	}
	if err != nil {
		o.logger.Warn("cannot read props file", "file", file, "error", err)
		return
	}

	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			o.logger.Warn("malformed props line, ignored", "file", file, "line", line)
			continue
		}
		chain := strings.TrimPrefix(fields[0], ":")
		if !buf.has(chain) && !ruleset.IsBuiltinChain(table, chain) {
			o.logger.Debug("policy for undefined chain ignored", "table", table, "chain", chain)
			continue
		}
		buf.setPolicy(chain, fields[1])
	}
}

// readLines returns the trimmed, non-empty, non-comment lines of a file.
func readLines(fsys fs.FS, name string) ([]string, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return lines, nil
}
