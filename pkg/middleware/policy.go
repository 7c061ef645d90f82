package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/prohmpiriya/multicore-crm/pkg/response"
)

// ForbiddenReason distinguishes the two authenticated-but-denied cases
type ForbiddenReason string

const (
	ReasonRoleMismatch   ForbiddenReason = "role_mismatch"
	ReasonTenantMismatch ForbiddenReason = "tenant_mismatch"
)

// Messages written by the authorization policy
const (
	MsgAuthenticationRequired = "Authentication required"
	MsgAccessDenied           = "Access denied"
)

// Rule maps a method and path pattern to the roles that may call it.
//
// Pattern segments are literal, "*" for exactly one segment, or a trailing
// "**" for zero or more segments. An empty Method matches every method.
// Roles use OR semantics. A Public rule needs no authentication; a rule
// with neither Public nor Roles needs any authenticated caller.
type Rule struct {
	Method  string
	Pattern string
	Roles   []string
	Public  bool
}

func (r Rule) String() string {
	m := r.Method
	if m == "" {
		m = "*"
	}
	return m + " " + r.Pattern
}

// Shadow reports a rule that can never match because an earlier rule covers it
type Shadow struct {
	Rule    Rule
	Index   int
	By      Rule
	ByIndex int
}

func (s Shadow) String() string {
	return fmt.Sprintf("rule %d (%s) is shadowed by rule %d (%s)", s.Index, s.Rule, s.ByIndex, s.By)
}

type compiledRule struct {
	Rule
	segments []string
}

// Decision is the outcome of evaluating a request against the policy
type Decision struct {
	Allowed bool
	Status  int
	Reason  ForbiddenReason
	Rule    Rule
	Matched bool
}

// Policy is an ordered rule table evaluated top to bottom, first match wins.
// Unmatched requests require authentication with any role.
type Policy struct {
	rules    []compiledRule
	shadowed []Shadow
}

// NewPolicy compiles rules in declaration order
func NewPolicy(rules ...Rule) (*Policy, error) {
	p := &Policy{rules: make([]compiledRule, 0, len(rules))}

	for i, r := range rules {
		segs, err := compilePattern(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r, err)
		}
		r.Method = strings.ToUpper(r.Method)
		cr := compiledRule{Rule: r, segments: segs}

		for j, earlier := range p.rules {
			if methodCovers(earlier.Method, cr.Method) && segmentsCover(earlier.segments, cr.segments) {
				p.shadowed = append(p.shadowed, Shadow{Rule: r, Index: i, By: earlier.Rule, ByIndex: j})
				break
			}
		}
		p.rules = append(p.rules, cr)
	}

	return p, nil
}

// MustPolicy is NewPolicy that panics on a malformed pattern
func MustPolicy(rules ...Rule) *Policy {
	p, err := NewPolicy(rules...)
	if err != nil {
		panic(err)
	}
	return p
}

// Shadowed lists rules that are unreachable under first-match evaluation
func (p *Policy) Shadowed() []Shadow {
	return p.shadowed
}

// Match returns the first rule matching method and path
func (p *Policy) Match(method, path string) (Rule, bool) {
	segs := splitPath(path)
	method = strings.ToUpper(method)
	for _, r := range p.rules {
		if (r.Method == "" || r.Method == method) && segmentsCover(r.segments, segs) {
			return r.Rule, true
		}
	}
	return Rule{}, false
}

// IsPublic reports whether the first matching rule is public
func (p *Policy) IsPublic(method, path string) bool {
	r, ok := p.Match(method, path)
	return ok && r.Public
}

// Decide evaluates a request. principal is nil for unauthenticated callers.
func (p *Policy) Decide(method, path string, principal *Principal) Decision {
	r, matched := p.Match(method, path)

	if matched && r.Public {
		return Decision{Allowed: true, Status: http.StatusOK, Rule: r, Matched: true}
	}
	if principal == nil {
		return Decision{Status: http.StatusUnauthorized, Rule: r, Matched: matched}
	}
	if !matched || len(r.Roles) == 0 || principal.HasAnyRole(r.Roles...) {
		return Decision{Allowed: true, Status: http.StatusOK, Rule: r, Matched: matched}
	}
	return Decision{Status: http.StatusForbidden, Reason: ReasonRoleMismatch, Rule: r, Matched: true}
}

// Authorize enforces the policy after Authenticate. Unauthenticated callers
// get 401; authenticated callers without a listed role get 403.
func Authorize(p *Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, _ := GetPrincipal(c)

		d := p.Decide(c.Request.Method, c.Request.URL.Path, principal)
		switch {
		case d.Allowed:
			c.Next()
		case d.Status == http.StatusUnauthorized:
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Flat(MsgAuthenticationRequired))
		default:
			c.Set(ContextKeyForbiddenReason, string(d.Reason))
			c.AbortWithStatusJSON(http.StatusForbidden, response.Flat(MsgAccessDenied))
		}
	}
}

func methodCovers(earlier, later string) bool {
	return earlier == "" || earlier == later
}

func compilePattern(pattern string) ([]string, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, fmt.Errorf("pattern %q must start with /", pattern)
	}
	segs := splitPath(pattern)
	for i, s := range segs {
		if s == "**" && i != len(segs)-1 {
			return nil, fmt.Errorf("pattern %q: ** is only allowed as the last segment", pattern)
		}
		if s != "*" && s != "**" && strings.Contains(s, "*") {
			return nil, fmt.Errorf("pattern %q: partial wildcards are not supported", pattern)
		}
	}
	return segs, nil
}

func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// segmentsCover reports whether every path matched by b is also matched by a.
// With b a concrete path this is plain matching.
func segmentsCover(a, b []string) bool {
	for {
		if len(a) == 0 {
			return len(b) == 0
		}
		if a[0] == "**" {
			return true
		}
		if len(b) == 0 || b[0] == "**" {
			return false
		}
		if a[0] != "*" && a[0] != b[0] {
			return false
		}
		a, b = a[1:], b[1:]
	}
}
