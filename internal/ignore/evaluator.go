// Package ignore decides which project-relative paths an ignore-rule set
// excludes, with gitignore semantics: nested ignore files, negation,
// directory-only rules, and absorbing directory exclusion.
package ignore

import "strings"

// Evaluator holds the flat rule table collected from every ignore file
// discovered so far. Rules must be added from the file closest to the project
// root outward; within that order the last matching rule decides.
type Evaluator struct {
	rules []Rule
}

// NewEvaluator returns an evaluator with no rules; every path is included.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Add appends the rules of one ignore file. Callers walking a tree top-down
// naturally satisfy the root-outward ordering.
func (e *Evaluator) Add(rules []Rule) {
	e.rules = append(e.rules, rules...)
}

// RuleCount reports how many rules are loaded.
func (e *Evaluator) RuleCount() int {
	return len(e.rules)
}

// Excluded reports whether rel is excluded. Exclusion of a directory is
// absorbing: a negation rule cannot re-include anything beneath an excluded
// directory.
func (e *Evaluator) Excluded(rel string, isDir bool) bool {
	rel = normalize(rel)
	if rel == "" {
		return false
	}

	for i := strings.IndexByte(rel, '/'); i >= 0; i = nextSlash(rel, i) {
		if excluded, matched := e.decide(rel[:i], true); matched && excluded {
			return true
		}
	}

	excluded, matched := e.decide(rel, isDir)
	return matched && excluded
}

// decide runs the last-match-wins reduction over the rule table for one path.
func (e *Evaluator) decide(rel string, isDir bool) (excluded bool, matched bool) {
	for i := range e.rules {
		r := &e.rules[i]
		sub, ok := r.scope(rel)
		if !ok {
			continue
		}
		if r.matches(sub, isDir) {
			matched = true
			excluded = !r.Negate
		}
	}
	return excluded, matched
}

// nextSlash returns the index of the slash after position i, -1 when none.
func nextSlash(s string, i int) int {
	j := strings.IndexByte(s[i+1:], '/')
	if j < 0 {
		return -1
	}
	return i + 1 + j
}
