// internal/workflow/policy.go
package workflow

import (
	"fmt"
	"net/url"
	"strings"
)

// AllowPolicy is the rule set determining which URLs the orchestrator may
// navigate to. A wildcard entry ("*") permits any http(s) URL; otherwise a
// candidate must share an allowed entry's origin and path prefix.
type AllowPolicy struct {
	wildcard bool
	entries  []allowEntry
}

type allowEntry struct {
	scheme     string
	host       string
	pathPrefix string
}

// NewAllowPolicy parses a list of permitted URL prefixes.
func NewAllowPolicy(prefixes []string) (*AllowPolicy, error) {
	p := &AllowPolicy{}
	for _, raw := range prefixes {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if raw == "*" {
			p.wildcard = true
			continue
		}

		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse allow entry %q: %w", raw, err)
		}
		if !isWebScheme(u.Scheme) || u.Host == "" {
			return nil, fmt.Errorf("allow entry %q must be an http(s) URL prefix", raw)
		}
		p.entries = append(p.entries, allowEntry{
			scheme:     u.Scheme,
			host:       u.Host,
			pathPrefix: u.Path,
		})
	}
	return p, nil
}

// Allows reports whether the orchestrator may navigate to candidate.
func (p *AllowPolicy) Allows(candidate string) bool {
	u, err := url.Parse(candidate)
	if err != nil || !isWebScheme(u.Scheme) || u.Host == "" {
		return false
	}
	if p.wildcard {
		return true
	}
	for _, e := range p.entries {
		if u.Scheme == e.scheme && u.Host == e.host && strings.HasPrefix(u.Path, e.pathPrefix) {
			return true
		}
	}
	return false
}

func isWebScheme(scheme string) bool {
	return scheme == "http" || scheme == "https"
}
