package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want bool
	}{
		{"greater true", "5>3", true},
		{"less false", "5<3", false},
		{"gte boundary", "5>=5", true},
		{"equality", "7==7", true},
		{"inequality", "7!=7", false},
		{"division by zero is false not panic", "10/0", false},
		{"division by zero-valued subexpression", "10/(3-3)", false},
		{"logical and", "(5>3)&&(2<4)", true},
		{"logical or short side", "(5<3)||(2<4)", true},
		{"truthy arithmetic", "1+1*2", true},
		{"spaces tolerated", " 100 >= 50 ", true},
		{"negative literal", "-5<0", true},
		{"blocked pattern", "require('fs')", false},
		{"invalid characters", "a=1;b=2", false},
		{"unbalanced parens", "(5>3", false},
		{"stacked operators", "5++3", false},
		{"empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Evaluate(tc.in), tc.in)
		})
	}
}

// Arithmetic splits at the first operator and recurses right, so 2*3+4 is
// 2*(3+4), not 10. The comparison below pins that behavior down.
func TestEvaluateLeftFirstOrder(t *testing.T) {
	assert.True(t, Evaluate("2*3+4 == 14"))
	assert.False(t, Evaluate("2*3+4 == 10"))
}

func TestSubstitute(t *testing.T) {
	got := Substitute("blogs_total>=10 && blogs>=2", map[string]float64{
		"blogs":       3,
		"blogs_total": 12,
	})
	assert.Equal(t, "12>=10 && 3>=2", got)
	assert.True(t, Evaluate(got))
}
