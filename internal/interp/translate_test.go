package interp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
		refs []string
	}{
		{"`a` * 2", "ref0 * 2", []string{"a"}},
		{"`batch_size`//len(`devices`)", "floor((ref0) / (len(ref1)))", []string{"batch_size", "devices"}},
		{"`a` * 10 // 4", "floor((ref0 * 10) / (4))", []string{"a"}},
		{"-`n` // 2", "floor((-ref0) / (2))", []string{"n"}},
		{"`a` - `n` // 2", "ref0 - floor((ref1) / (2))", []string{"a", "n"}},
		{"`n` // 2 // 4", "floor((floor((ref0) / (2))) / (4))", []string{"n"}},
		{"2 ** 3 ** 2", "pow(2, pow(3, 2))", nil},
		{"-`x` ** 2", "-pow(ref0, 2)", []string{"x"}},
		{"`x` ** -1", "pow(ref0, -1)", []string{"x"}},
		{"`l`[0] ** 2", "pow(ref0[0], 2)", []string{"l"}},
		{"(`a` + 1) ** 2 // 3", "floor((pow((ref0 + 1), 2)) / (3))", []string{"a"}},
		{"`a` > 2 and not False", "ref0 > 2 && !false", []string{"a"}},
		{"`a` < 2 or `b` == None", "ref0 < 2 || ref1 == null", []string{"a", "b"}},
		{"upper(\"`name`\")", `upper("${ref0}")`, []string{"name"}},
		{"format('%s-%s', `a`, '`b`!')", `format("%s-%s", ref0, "${ref1}!")`, []string{"a", "b"}},
		{`'say "hi" ${x} // not division'`, `"say \"hi\" $${x} // not division"`, nil},
		{`"tab\tquote\'"`, `"tab\tquote'"`, nil},
	}
	for _, tt := range tests {
		got, refs, err := translate(tt.in)
		require.NoError(t, err, "translate(%q)", tt.in)
		assert.Equal(t, tt.want, got, "translate(%q)", tt.in)
		assert.Equal(t, tt.refs, refs, "translate(%q) references", tt.in)
	}
}

func TestTranslateErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"`a` # note", "comments are not allowed"},
		{"`a` /* note */", "comments are not allowed"},
		{"`a` << 1", "unsupported operator"},
		{"`a >> 1", "unbalanced backtick"},
		{"upper(\"`name`)", "unterminated string"},
		{"upper(\"`name)\")", "unbalanced backtick"},
		{"`a` ** ", "missing operand"},
		{"// 2", "missing operand"},
		{"`a` ** (2", "unbalanced brackets"},
	}
	for _, tt := range tests {
		_, _, err := translate(tt.in)
		require.Error(t, err, "translate(%q)", tt.in)
		assert.Contains(t, err.Error(), tt.want, "translate(%q)", tt.in)
	}
}
