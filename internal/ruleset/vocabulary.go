package ruleset

import "slices"

// Table names known to iptables, in the order tables are rendered.
var Tables = []string{"mangle", "nat", "filter", "raw", "security"}

// Default policy given to builtin chains.
const DefaultPolicy = "ACCEPT"

// UnsetPolicy marks a user-defined chain (or a chain whose policy is unknown).
const UnsetPolicy = "-"

var builtinChains = map[string][]string{
	"mangle":   {"PREROUTING", "INPUT", "FORWARD", "OUTPUT", "POSTROUTING"},
	"nat":      {"PREROUTING", "OUTPUT", "POSTROUTING"},
	"filter":   {"INPUT", "FORWARD", "OUTPUT"},
	"raw":      {"PREROUTING", "OUTPUT"},
	"security": {"INPUT", "FORWARD", "OUTPUT"},
}

// Tables allowed to hold user-defined chains.
var customChains = map[string]bool{
	"mangle":   false,
	"nat":      false,
	"filter":   true,
	"raw":      false,
	"security": true,
}

// StandardTargets are the verdicts every chain understands.
var StandardTargets = []string{"DROP", "RETURN", "QUEUE", "ACCEPT"}

// ExtendedTargets are target extensions valid in any table.
var ExtendedTargets = []string{
	"CLASSIFY", "CLUSTERIP", "CONNMARK", "DSCP", "LOG", "NFLOG", "NFQUEUE",
	"RATEEST", "SET", "TCPOPTSTRIP", "ULOG",
}

var mangleTargets = []string{"SECMARK", "CONNSECMARK", "ECN", "MARK", "MIRROR", "TCPMSS", "TOS", "TPROXY", "TTL"}

var tableTargets = map[string]map[string][]string{
	"mangle": {
		"PREROUTING":  mangleTargets,
		"INPUT":       mangleTargets,
		"FORWARD":     mangleTargets,
		"OUTPUT":      mangleTargets,
		"POSTROUTING": mangleTargets,
	},
	"nat": {
		"PREROUTING":  {"DNAT", "NETMAP", "REDIRECT", "SAME"},
		"OUTPUT":      {"DNAT", "NETMAP", "REDIRECT", "SAME"},
		"POSTROUTING": {"MASQUERADE", "NETMAP", "SNAT", "SAME"},
	},
	"filter": {
		"INPUT":   {"REJECT"},
		"FORWARD": {"REJECT"},
		"OUTPUT":  {"REJECT"},
	},
	"raw": {
		"PREROUTING": {"NOTRACK", "TRACE"},
		"OUTPUT":     {"NOTRACK", "TRACE"},
	},
	"security": {
		"INPUT":   {"SECMARK", "CONNSECMARK"},
		"FORWARD": {"SECMARK", "CONNSECMARK"},
		"OUTPUT":  {"SECMARK", "CONNSECMARK"},
	},
}

// IsKnownTable reports whether name is one of the fixed iptables tables.
func IsKnownTable(name string) bool {
	_, ok := builtinChains[name]
	return ok
}

// BuiltinChainNames returns the fixed chain names of a table, or nil for an
// unknown table.
func BuiltinChainNames(table string) []string {
	names := builtinChains[table]
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// IsBuiltinChain reports whether chain is one of table's default chains.
func IsBuiltinChain(table, chain string) bool {
	return slices.Contains(builtinChains[table], chain)
}

// IsStandardTarget reports whether target is a standard or extended target.
func IsStandardTarget(target string) bool {
	return slices.Contains(StandardTargets, target) || slices.Contains(ExtendedTargets, target)
}

// chainTargets returns the table specific targets usable from chain.
// User-defined chains may use any target of their table's builtin chains.
func chainTargets(table, chain string) []string {
	perChain, ok := tableTargets[table]
	if !ok {
		return nil
	}
	if targets, ok := perChain[chain]; ok {
		return targets
	}
	if IsBuiltinChain(table, chain) {
		return nil
	}

	var union []string
	for _, builtin := range builtinChains[table] {
		for _, t := range perChain[builtin] {
			if !slices.Contains(union, t) {
				union = append(union, t)
			}
		}
	}
	return union
}
