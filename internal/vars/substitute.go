package vars

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/loykin/apiload/internal/constants"
	"github.com/loykin/apiload/internal/transport"
	"github.com/loykin/apiload/internal/util"
)

var exprPattern = regexp.MustCompile(`\{\{(.*?)\}\}`)

// History gives access to the responses of earlier tasks by position.
// Response reports false for failed or missing entries.
type History interface {
	Len() int
	Response(i int) (*transport.Response, bool)
}

// Substituter expands {{expr}} occurrences. An expression is either a
// cross-task reference "<index>.response.<path>", a stored variable or one
// of the built-ins timestamp and unix_timestamp. Expressions that resolve
// to nothing are left in place.
type Substituter struct {
	Vars    *Store
	History History
	Now     func() time.Time
}

// String substitutes every expression in s.
func (s *Substituter) String(in string) string {
	if !strings.Contains(in, "{{") {
		return in
	}
	return exprPattern.ReplaceAllStringFunc(in, func(m string) string {
		if v, ok := s.Lookup(m[2 : len(m)-2]); ok {
			return v
		}
		return m
	})
}

// Value substitutes every string leaf of maps and slices in v.
func (s *Substituter) Value(v any) any {
	return util.MapStrings(v, s.String)
}

// Lookup resolves a single expression without its braces.
func (s *Substituter) Lookup(expr string) (string, bool) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return "", false
	}
	segments := strings.Split(expr, ".")
	if len(segments) >= 3 && segments[1] == "response" {
		return s.crossTask(segments)
	}
	if v, ok := s.Vars.Get(expr); ok {
		return util.AnyToString(v), true
	}
	switch expr {
	case constants.VarTimestamp:
		return s.now().Format(time.RFC3339), true
	case constants.VarUnixTimestamp:
		return strconv.FormatInt(s.now().Unix(), 10), true
	}
	return "", false
}

func (s *Substituter) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Substituter) crossTask(segments []string) (string, bool) {
	if s.History == nil || !isIndex(segments[0]) {
		return "", false
	}
	idx, err := strconv.Atoi(segments[0])
	if err != nil || idx >= s.History.Len() {
		return "", false
	}
	resp, ok := s.History.Response(idx)
	if !ok || resp == nil {
		return "", false
	}
	return walkResponse(resp, segments[2:])
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// walkResponse descends into a response seen as the mapping
// {status_code, headers, body, json, url, method}.
func walkResponse(resp *transport.Response, path []string) (string, bool) {
	rest := path[1:]
	switch path[0] {
	case "json":
		res, ok := lookupJSON(resp.Body, rest)
		if !ok {
			return "", false
		}
		return text(res), true
	case "body":
		if len(rest) > 0 {
			return "", false
		}
		return resp.Body, true
	case "headers":
		switch len(rest) {
		case 0:
			b, err := json.Marshal(resp.Headers)
			return string(b), err == nil
		case 1:
			v, ok := resp.Headers[strings.ToLower(rest[0])]
			return v, ok
		}
		return "", false
	case "status_code":
		return strconv.Itoa(resp.StatusCode), len(rest) == 0
	case "url":
		return resp.URL, len(rest) == 0
	case "method":
		return resp.Method, len(rest) == 0
	default:
		return "", false
	}
}
