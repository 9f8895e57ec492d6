// Package scope contains scope-name validation and the negotiation that
// computes the authorized scope set for a token request.
package scope

import (
	"regexp"
	"sort"
	"strings"
)

// Scope name rules:
// - Lowercase only.
// - Start and end with [a-z0-9].
// - Middle chars may include [a-z0-9:_.-].
// - Length 1..64.
// - Excludes semicolon and whitespace explicitly.
//
// Examples valid: product.read, profile, email:read, a_b-c.d:scope2
// Examples invalid: ;hack, BAD, bad space, :leader, trailer:, "", 65+ chars.
var scopeNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidName returns true if the provided scope name matches the allowed pattern.
func ValidName(name string) bool {
	return scopeNameRe.MatchString(name)
}

// Parse splits a space-delimited scope parameter into a deduplicated list.
// Order of first appearance is preserved.
func Parse(param string) []string {
	fields := strings.Fields(param)
	if len(fields) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Negotiate computes the authorized scope set for a request.
//
// The result starts from clientScopes. If requested is non-empty it is
// intersected with it; requested scopes outside the client's set are
// silently dropped (best-effort negotiation, not an error). If userScopes
// is non-empty it is intersected again: a user with no scope-shaped
// authorities does not narrow the client's scopes.
//
// The result is always a subset of clientScopes, sorted, and may be empty.
func Negotiate(requested, clientScopes, userScopes []string) []string {
	result := toSet(clientScopes)
	if len(requested) > 0 {
		result = intersect(result, toSet(requested))
	}
	if len(userScopes) > 0 {
		result = intersect(result, toSet(userScopes))
	}
	out := make([]string, 0, len(result))
	for s := range result {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Subset reports whether every element of sub is contained in super.
// Used by refresh rotation: scopes can narrow, never widen.
func Subset(sub, super []string) bool {
	set := toSet(super)
	for _, s := range sub {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}

// Join renders a scope set as the space-joined wire form.
func Join(scopes []string) string {
	return strings.Join(scopes, " ")
}

func toSet(list []string) map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, s := range list {
		set[s] = struct{}{}
	}
	return set
}

func intersect(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for s := range a {
		if _, ok := b[s]; ok {
			out[s] = struct{}{}
		}
	}
	return out
}
