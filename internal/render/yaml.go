package render

import (
	"bytes"

	"gopkg.in/yaml.v2"

	"grimm.is/bbfw/internal/ruleset"
)

type yamlRuleset struct {
	Name   string      `yaml:"name"`
	Tables []yamlTable `yaml:"tables"`
}

type yamlTable struct {
	Name   string      `yaml:"name"`
	Chains []yamlChain `yaml:"chains"`
}

type yamlChain struct {
	Name     string   `yaml:"name"`
	Policy   string   `yaml:"policy"`
	Builtin  bool     `yaml:"builtin"`
	Referers []string `yaml:"referers,omitempty"`
	Rules    []string `yaml:"rules,omitempty"`
}

// YAML dumps rs as a YAML document for other tools.
func YAML(rs *ruleset.Ruleset) ([]byte, error) {
	doc := yamlRuleset{Name: rs.Name}
	for _, t := range rs.Tables() {
		yt := yamlTable{Name: t.Name()}
		for _, c := range t.Chains() {
			yc := yamlChain{
				Name:     c.Name(),
				Policy:   c.Policy(),
				Builtin:  c.IsBuiltin(),
				Referers: c.Referers(),
			}
			for _, r := range c.Rules() {
				yc.Rules = append(yc.Rules, r.Format(true))
			}
			yt.Chains = append(yt.Chains, yc)
		}
		doc.Tables = append(doc.Tables, yt)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
