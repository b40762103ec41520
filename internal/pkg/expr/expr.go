// Package expr evaluates the restricted requirement formulas attached to
// badges. The grammar is deliberately tiny: decimal numbers and the operators
// + - * / > < >= <= == != && || ( ). Anything else is rejected before
// evaluation so that substituted values can never smuggle code in.
//
// Evaluation is intentionally not precedence aware. Each call consumes one
// operator, splitting at the first occurrence of its class (logical before
// comparison before arithmetic) and recursing on both sides. Every failure
// mode returns false, never an error, so one broken formula cannot block
// unrelated badge checks.
package expr

import (
	"sort"
	"strconv"
	"strings"
)

const maxExpressionLen = 512

const allowedChars = "0123456789+-*/().<>=!&| "

// blockedTokens are checked as substrings before anything else. They only
// matter if the character allow-list is ever loosened, but they stay as a
// second line of defense.
var blockedTokens = []string{
	"constructor",
	"prototype",
	"__proto__",
	"function",
	"eval",
	"require",
	"import",
	"process",
	"global",
	"window",
	"settimeout",
	"setinterval",
	"=>",
}

var logicalOps = []string{"&&", "||"}

var comparisonOps = []string{">=", "<=", "==", "!=", ">", "<"}

var arithmeticOps = []string{"+", "-", "*", "/"}

// Evaluate runs a fully substituted expression and returns its truth value.
// Malformed, blocked or erroring input is false, by contract.
func Evaluate(expression string) bool {
	s := strings.TrimSpace(expression)
	if !safe(s) {
		return false
	}

	v, ok := eval(s)
	if !ok {
		return false
	}
	return v != 0
}

// Substitute replaces variable names in a formula with their resolved values.
// Longer names go first so "blogs_total" is not clobbered by "blogs". Booleans
// arrive already coerced to 0/1 by the resolver.
func Substitute(expression string, vars map[string]float64) string {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	out := expression
	for _, name := range names {
		out = strings.ReplaceAll(out, name, strconv.FormatFloat(vars[name], 'f', -1, 64))
	}
	return out
}

func safe(s string) bool {
	if s == "" || len(s) > maxExpressionLen {
		return false
	}

	lower := strings.ToLower(s)
	for _, tok := range blockedTokens {
		if strings.Contains(lower, tok) {
			return false
		}
	}

	for _, r := range s {
		if !strings.ContainsRune(allowedChars, r) {
			return false
		}
	}

	if !balanced(s) {
		return false
	}
	return validOperatorRuns(s)
}

func balanced(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

func isOperatorChar(r byte) bool {
	switch r {
	case '+', '-', '*', '/', '<', '>', '=', '!', '&', '|':
		return true
	}
	return false
}

var validPairs = map[string]bool{
	">=": true, "<=": true, "==": true, "!=": true, "&&": true, "||": true,
}

// validOperatorRuns rejects stacked operators like "5++3" or "1 >== 2". A
// leading minus on the whole expression or right after an opening paren is
// the only unary form permitted.
func validOperatorRuns(s string) bool {
	compact := strings.ReplaceAll(s, " ", "")
	i := 0
	for i < len(compact) {
		if !isOperatorChar(compact[i]) {
			i++
			continue
		}
		j := i
		for j < len(compact) && isOperatorChar(compact[j]) {
			j++
		}
		run := compact[i:j]
		switch len(run) {
		case 1:
		case 2:
			// Either a real two-char operator or an operator followed by a
			// sign, like "*-" in "5*-3".
			if !validPairs[run] && run[1] != '-' {
				return false
			}
		case 3:
			// e.g. ">=-" for a comparison against a negative literal.
			if !validPairs[run[:2]] || run[2] != '-' {
				return false
			}
		default:
			return false
		}
		i = j
	}
	return true
}

func eval(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = stripOuterParens(s)

	if idx, op := firstTopLevel(s, logicalOps); idx >= 0 {
		return evalLogical(s, idx, op)
	}
	if idx, op := firstTopLevel(s, comparisonOps); idx >= 0 {
		return evalComparison(s, idx, op)
	}
	if idx, op := firstArithmetic(s); idx >= 0 {
		return evalArithmetic(s, idx, op)
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// stripOuterParens removes parentheses that wrap the entire expression,
// repeatedly, so "((5>3))" reduces to "5>3".
func stripOuterParens(s string) string {
	for len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' {
		depth := 0
		wraps := true
		for i := 0; i < len(s)-1; i++ {
			switch s[i] {
			case '(':
				depth++
			case ')':
				depth--
			}
			if depth == 0 {
				wraps = false
				break
			}
		}
		if !wraps {
			return s
		}
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// firstTopLevel locates the earliest occurrence of any candidate operator
// outside parentheses. Two-character operators are matched before their
// one-character prefixes at the same position.
func firstTopLevel(s string, ops []string) (int, string) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
			continue
		case ')':
			depth--
			continue
		}
		if depth != 0 {
			continue
		}
		for _, op := range ops {
			if len(op) == 2 && i+1 < len(s) && s[i:i+2] == op {
				return i, op
			}
		}
		for _, op := range ops {
			if len(op) == 1 && s[i:i+1] == op {
				// ">" must not shadow ">=".
				if i+1 < len(s) && s[i+1] == '=' {
					continue
				}
				return i, op
			}
		}
	}
	return -1, ""
}

// firstArithmetic is firstTopLevel specialised for + - * /, skipping a minus
// that acts as a sign (expression start or right after another operator).
func firstArithmetic(s string) (int, string) {
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '(':
			depth++
			continue
		case ')':
			depth--
			continue
		}
		if depth != 0 {
			continue
		}
		for _, op := range arithmeticOps {
			if string(c) != op {
				continue
			}
			if c == '-' && unaryMinusAt(s, i) {
				continue
			}
			return i, op
		}
	}
	return -1, ""
}

func unaryMinusAt(s string, i int) bool {
	j := i - 1
	for j >= 0 && s[j] == ' ' {
		j--
	}
	if j < 0 {
		return true
	}
	return isOperatorChar(s[j]) || s[j] == '('
}

func evalLogical(s string, idx int, op string) (float64, bool) {
	left, ok := eval(s[:idx])
	if !ok {
		return 0, false
	}
	right, ok := eval(s[idx+len(op):])
	if !ok {
		return 0, false
	}

	var r bool
	switch op {
	case "&&":
		r = left != 0 && right != 0
	case "||":
		r = left != 0 || right != 0
	}
	if r {
		return 1, true
	}
	return 0, true
}

func evalComparison(s string, idx int, op string) (float64, bool) {
	left, ok := eval(s[:idx])
	if !ok {
		return 0, false
	}
	right, ok := eval(s[idx+len(op):])
	if !ok {
		return 0, false
	}

	var r bool
	switch op {
	case ">=":
		r = left >= right
	case "<=":
		r = left <= right
	case "==":
		r = left == right
	case "!=":
		r = left != right
	case ">":
		r = left > right
	case "<":
		r = left < right
	}
	if r {
		return 1, true
	}
	return 0, true
}

func evalArithmetic(s string, idx int, op string) (float64, bool) {
	left, ok := eval(s[:idx])
	if !ok {
		return 0, false
	}
	right, ok := eval(s[idx+len(op):])
	if !ok {
		return 0, false
	}

	switch op {
	case "+":
		return left + right, true
	case "-":
		return left - right, true
	case "*":
		return left * right, true
	case "/":
		if right == 0 {
			return 0, false
		}
		return left / right, true
	}
	return 0, false
}
