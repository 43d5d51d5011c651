package core

import (
	"regexp"
	"strings"
	"sync"

	"github.com/huangsam/exprora/internal/contract"
	"github.com/huangsam/exprora/schema"
)

// Device classes derived from a user agent.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

// Browser families derived from a user agent.
const (
	BrowserEdge    = "edge"
	BrowserOpera   = "opera"
	BrowserChrome  = "chrome"
	BrowserFirefox = "firefox"
	BrowserSafari  = "safari"
	BrowserOther   = "other"
)

// RuleMatcher evaluates targeting rules against a visitor context. All rules
// must match. Text comparisons ignore case; regex rules are matched as written
// and an invalid pattern never matches.
type RuleMatcher struct {
	patterns sync.Map // string -> *regexp.Regexp, nil for invalid patterns
}

var _ contract.TargetingMatcher = &RuleMatcher{} // Compile-time check

// NewRuleMatcher creates a matcher with an empty pattern cache.
func NewRuleMatcher() *RuleMatcher {
	return &RuleMatcher{}
}

// Matches implements the TargetingMatcher interface.
func (m *RuleMatcher) Matches(rules []schema.TargetingRule, visitor schema.VisitorContext) bool {
	for _, rule := range rules {
		if !m.matchRule(rule, visitor) {
			return false
		}
	}
	return true
}

func (m *RuleMatcher) matchRule(rule schema.TargetingRule, visitor schema.VisitorContext) bool {
	subject, ok := ruleSubject(rule, visitor)
	if !ok {
		return false
	}

	switch rule.Condition {
	case schema.ContainsCondition:
		return strings.Contains(strings.ToLower(subject), strings.ToLower(rule.Value))
	case schema.EqualsCondition:
		return strings.EqualFold(subject, rule.Value)
	case schema.StartsWithCondition:
		return strings.HasPrefix(strings.ToLower(subject), strings.ToLower(rule.Value))
	case schema.EndsWithCondition:
		return strings.HasSuffix(strings.ToLower(subject), strings.ToLower(rule.Value))
	case schema.RegexCondition:
		re := m.compile(rule.Value)
		return re != nil && re.MatchString(subject)
	default:
		return false
	}
}

// compile caches compiled patterns, including failures.
func (m *RuleMatcher) compile(pattern string) *regexp.Regexp {
	if cached, ok := m.patterns.Load(pattern); ok {
		return cached.(*regexp.Regexp)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		re = nil
	}
	m.patterns.Store(pattern, re)
	return re
}

// ruleSubject picks the visitor attribute a rule inspects. Rules of an
// unknown type, and custom rules on a missing attribute, have no subject.
func ruleSubject(rule schema.TargetingRule, visitor schema.VisitorContext) (string, bool) {
	switch rule.Type {
	case schema.URLTarget:
		return visitor.URL, true
	case schema.DeviceTarget:
		return DeviceClass(visitor.UserAgent), true
	case schema.BrowserTarget:
		return BrowserFamily(visitor.UserAgent), true
	case schema.CountryTarget:
		return visitor.Country, true
	case schema.CustomTarget:
		v, ok := visitor.Attributes[rule.Key]
		return v, ok
	default:
		return "", false
	}
}

// DeviceClass classifies a user agent as mobile, tablet or desktop.
func DeviceClass(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet") ||
		(strings.Contains(ua, "android") && !strings.Contains(ua, "mobile")):
		return DeviceTablet
	case strings.Contains(ua, "mobi") || strings.Contains(ua, "iphone") || strings.Contains(ua, "ipod"):
		return DeviceMobile
	default:
		return DeviceDesktop
	}
}

// BrowserFamily names the browser family of a user agent. Order matters:
// Edge and Opera also advertise Chrome, and Chrome also advertises Safari.
func BrowserFamily(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "edg/") || strings.Contains(ua, "edge/"):
		return BrowserEdge
	case strings.Contains(ua, "opr/") || strings.Contains(ua, "opera"):
		return BrowserOpera
	case strings.Contains(ua, "firefox/") || strings.Contains(ua, "fxios/"):
		return BrowserFirefox
	case strings.Contains(ua, "chrome/") || strings.Contains(ua, "crios/"):
		return BrowserChrome
	case strings.Contains(ua, "safari/"):
		return BrowserSafari
	default:
		return BrowserOther
	}
}
