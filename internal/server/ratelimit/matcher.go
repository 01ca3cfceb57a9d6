package ratelimit

import "strings"

// Match returns the rule for a request: exact path first, then the longest prefix rule.
func Match(path, method string, rules []Rule) (Rule, bool) {
	for _, r := range rules {
		if r.Method == method && r.Path == path {
			return r, true
		}
	}

	best, found := Rule{}, false
	for _, r := range rules {
		if r.Method != method || !strings.HasSuffix(r.Path, "/") || !strings.HasPrefix(path, r.Path) {
			continue
		}
		if !found || len(r.Path) > len(best.Path) {
			best, found = r, true
		}
	}
	return best, found
}
