package ruleset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRule(t *testing.T) {
	r := ParseRule("-A INPUT -p tcp -m tcp --dport 22 -m comment --comment \"ssh access\" -j ACCEPT")

	props := r.Properties()
	require.Len(t, props, 7)
	assert.Equal(t, NewProperty("-A", "INPUT"), props[0])
	assert.Equal(t, NewProperty("--comment", `"ssh access"`), props[5])
	assert.Equal(t, "ACCEPT", r.Target())
	assert.Equal(t, "22", r.Value("--dport"))
}

func TestParseRuleBareFlags(t *testing.T) {
	r := ParseRule("! -s 10.0.0.1 -m recent --rsource --name x -j DROP")

	neg, ok := r.Property("!")
	require.True(t, ok)
	assert.False(t, neg.HasValue)
	assert.Equal(t, "!", neg.String())

	rsource, ok := r.Property("--rsource")
	require.True(t, ok)
	assert.False(t, rsource.HasValue)
	assert.Equal(t, "", rsource.Value)
}

func TestRuleRoundTrip(t *testing.T) {
	lines := []string{
		"-A INPUT -p tcp --dport 22 -j ACCEPT",
		"-A INPUT -i lo -j ACCEPT",
		"! -d 127.0.0.0/8 -m addrtype --dst-type LOCAL -j DOCKER",
		"-m comment --comment \"two words\" -j LOG --log-prefix \"fw: \"",
		"-p tcp --tcp-flags FIN,SYN,RST,ACK SYN -j DROP",
		"-m conntrack --ctstate RELATED,ESTABLISHED",
	}
	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			assert.Equal(t, line, ParseRule(line).String())
		})
	}
}

func TestRuleFormatExcludesAppend(t *testing.T) {
	r := ParseRule("-A LOGDROP -j LOG --log-level 4")
	assert.Equal(t, "-j LOG --log-level 4", r.Format(true))
	assert.Equal(t, "-A LOGDROP -j LOG --log-level 4", r.Format(false))
}

func TestRuleTarget(t *testing.T) {
	tests := []struct {
		line   string
		target string
	}{
		{"-p tcp -j ACCEPT", "ACCEPT"},
		{"-p tcp -g LOGDROP", "LOGDROP"},
		{"-g GOTO -j JUMP", "JUMP"},
		{"-p tcp", ""},
		{"-j", ""},
	}
	for _, tc := range tests {
		t.Run(tc.line, func(t *testing.T) {
			assert.Equal(t, tc.target, ParseRule(tc.line).Target())
		})
	}
}

func TestRuleEqual(t *testing.T) {
	reg := DefaultRegistry()

	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical", "-p tcp --dport 22 -j ACCEPT", "-p tcp --dport 22 -j ACCEPT", true},
		{"permuted", "-p tcp -s 10.0.0.1 -j ACCEPT", "-s 10.0.0.1/32 -p tcp -j ACCEPT", true},
		{"append flag ignored", "-A INPUT -p tcp -j ACCEPT", "-p tcp -j ACCEPT", true},
		{"different port", "-p tcp --dport 22 -j ACCEPT", "-p tcp --dport 23 -j ACCEPT", false},
		{"different target", "-p tcp -j ACCEPT", "-p tcp -j DROP", false},
		{"set-mark alias", "-j MARK --set-mark 5", "-j MARK --set-xmark 5/0xffffffff", true},
		{"set-mark wrong mask", "-j MARK --set-mark 5", "-j MARK --set-xmark 5/0x1", false},
		{"icmp symbolic", "-p icmp --icmp-type echo-request -j ACCEPT", "-p icmp -m icmp --icmp-type 8 -j ACCEPT", true},
		{"comment quoting", "-m comment --comment foo -j ACCEPT", "-m comment --comment \"foo\" -j ACCEPT", true},
		{"module core protocols", "-p tcp -m tcp --dport 80 -j ACCEPT", "-p tcp -m udp --dport 80 -j ACCEPT", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseRule(tc.a).Equal(ParseRule(tc.b), reg))
		})
	}
}

// Rule equality only checks the receiver's properties against the other
// rule. Extra properties on the other side are accepted.
func TestRuleEqualIsAsymmetric(t *testing.T) {
	reg := DefaultRegistry()
	minimal := ParseRule("-p tcp --dport 22 -j ACCEPT")
	decorated := ParseRule("-p tcp -m tcp --dport 22 -m comment --comment ssh -j ACCEPT")

	assert.True(t, minimal.Equal(decorated, reg))
	assert.False(t, decorated.Equal(minimal, reg))
}

func TestRuleEqualNil(t *testing.T) {
	assert.False(t, ParseRule("-j ACCEPT").Equal(nil, DefaultRegistry()))
}
