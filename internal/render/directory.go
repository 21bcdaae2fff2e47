package render

import (
	"bytes"
	"fmt"
	"path"

	"grimm.is/bbfw/internal/ruleset"
)

// File is one file of the configuration directory, relative to its root.
type File struct {
	Path string
	Data []byte
}

// Directory renders rs in the configuration directory layout: one
// <table>/<chain>.src file per chain holding its rules without -A, and a
// <table>.props file with the chain policies.
func Directory(rs *ruleset.Ruleset) []File {
	var files []File
	for _, t := range rs.Tables() {
		var props bytes.Buffer
		for _, c := range t.Chains() {
			var src bytes.Buffer
			for _, r := range c.Rules() {
				src.WriteString(r.Format(true))
				src.WriteByte('\n')
			}
			files = append(files, File{
				Path: path.Join(t.Name(), c.Name()+".src"),
				Data: src.Bytes(),
			})
			fmt.Fprintf(&props, ":%s %s [0:0]\n", c.Name(), c.Policy())
		}
		files = append(files, File{Path: t.Name() + ".props", Data: props.Bytes()})
	}
	return files
}
