// Package rules maps analyst queries onto threat API endpoints with a fixed,
// ordered keyword cascade. The first matching keyword group wins.
package rules

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"tdr-agent/internal/types"
)

// Endpoint keys produced by the cascade
const (
	UserListEndpoint           = "GET /threats/users/"
	UserSummaryEndpoint        = "GET /threats/users/{user_id}/summary/"
	DeviceListEndpoint         = "GET /threats/devices/"
	DeviceSummaryEndpoint      = "GET /threats/devices/{device_id}/summary/"
	RareProcessListEndpoint    = "GET /threats/rare-processes/"
	RareProcessSummaryEndpoint = "GET /threats/rare-processes/{alert_id}/summary/"
	OrgSummaryEndpoint         = "GET /threats/org/summary/"
)

const (
	// DefaultLimit applies when the query names no count
	DefaultLimit = 10
	// MaxLimit is the largest page the threat API serves
	MaxLimit = 100

	dateParam = "date[eq]"
)

var (
	userKeywords    = []string{"user", "users", "risky user", "anomalous user"}
	deviceKeywords  = []string{"device", "devices", "risky device", "anomalous device"}
	processKeywords = []string{"rare process", "process", "processes", "execution", "executions"}
	orgKeywords     = []string{"organization", "org", "company", "overall", "summary"}
	detailKeywords  = []string{"summary", "describe", "details"}
)

// Id patterns are tried in order; digits first so "user user123" yields "123".
var (
	userIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`user\s*(\d+)`),
		regexp.MustCompile(`user\s*id\s*(\w+)`),
		regexp.MustCompile(`user\s*(\w+)`),
	}
	deviceIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`device\s*(\d+)`),
		regexp.MustCompile(`device\s*id\s*(\w+)`),
		regexp.MustCompile(`device\s*(\w+)`),
	}
	alertIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`alert\s*id\s*(\w+)`),
		regexp.MustCompile(`alert\s*(\d+)`),
		regexp.MustCompile(`id\s*(\d+)`),
	}
	limitPatterns = []*regexp.Regexp{
		regexp.MustCompile(`top\s*(\d+)`),
		regexp.MustCompile(`first\s*(\d+)`),
		regexp.MustCompile(`(\d+)\s*most`),
		regexp.MustCompile(`(\d+)\s*risky`),
		regexp.MustCompile(`(\d+)\s*anomalous`),
	}
	datePattern = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)
)

// Match is a rule hit
type Match struct {
	Endpoint   string
	Parameters types.Parameters
}

// Resolver is the deterministic keyword resolver
type Resolver struct {
	now func() time.Time
}

// Option configures a Resolver
type Option func(*Resolver)

// WithClock overrides the clock used for relative dates
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// NewResolver creates a new rule resolver
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve maps a lower-cased query to an endpoint key and parameters. It
// reports false when no keyword group produces a result.
func (r *Resolver) Resolve(query string) (Match, bool) {
	switch {
	case containsAny(query, userKeywords):
		return r.entity(query, userIDPatterns, "user_id", UserSummaryEndpoint, UserListEndpoint)

	case containsAny(query, deviceKeywords):
		return r.entity(query, deviceIDPatterns, "device_id", DeviceSummaryEndpoint, DeviceListEndpoint)

	case containsAny(query, processKeywords):
		if containsAny(query, detailKeywords) {
			id, ok := extractID(query, alertIDPatterns)
			if !ok {
				return Match{}, false
			}
			return Match{
				Endpoint:   RareProcessSummaryEndpoint,
				Parameters: types.Parameters{"alert_id": id},
			}, true
		}
		return Match{
			Endpoint: RareProcessListEndpoint,
			Parameters: types.Parameters{
				"limit":   ExtractLimit(query),
				dateParam: r.extractDate(query),
			},
		}, true

	case containsAny(query, orgKeywords):
		return Match{
			Endpoint:   OrgSummaryEndpoint,
			Parameters: types.Parameters{dateParam: r.extractDate(query)},
		}, true
	}

	return Match{}, false
}

// entity handles the user and device groups, which differ only in names
func (r *Resolver) entity(query string, patterns []*regexp.Regexp, idParam, summaryKey, listKey string) (Match, bool) {
	if containsAny(query, detailKeywords) {
		id, ok := extractID(query, patterns)
		if !ok {
			// a detail request without an id does not fall back to the list
			return Match{}, false
		}
		return Match{
			Endpoint: summaryKey,
			Parameters: types.Parameters{
				idParam:   id,
				dateParam: r.extractDate(query),
			},
		}, true
	}
	return Match{
		Endpoint: listKey,
		Parameters: types.Parameters{
			"limit":   ExtractLimit(query),
			dateParam: r.extractDate(query),
		},
	}, true
}

// extractDate returns a literal YYYY-MM-DD, yesterday's date, or nil
func (r *Resolver) extractDate(query string) any {
	if m := datePattern.FindStringSubmatch(query); m != nil {
		return m[1]
	}
	if strings.Contains(query, "yesterday") {
		return r.now().AddDate(0, 0, -1).Format("2006-01-02")
	}
	return nil
}

// ExtractLimit returns the requested count clamped to MaxLimit, or DefaultLimit
func ExtractLimit(query string) int {
	for _, p := range limitPatterns {
		m := p.FindStringSubmatch(query)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n > MaxLimit {
			// only overflow can fail on a \d+ capture
			return MaxLimit
		}
		return n
	}
	return DefaultLimit
}

func extractID(query string, patterns []*regexp.Regexp) (string, bool) {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(query); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
