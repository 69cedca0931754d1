package rules

import (
	"fmt"
	"strings"
)

// BrokenRule is a recorded validation failure
type BrokenRule struct {
	Rule     string
	Property string
	Severity Severity
	Message  string
}

// String renders the broken rule for logs and error text
func (b BrokenRule) String() string {
	return fmt.Sprintf("%s: %s", b.Property, b.Message)
}

type brokenKey struct {
	rule     string
	property string
}

// BrokenRules is the ordered set of currently broken rules of one instance,
// keyed by (rule, property). It is not safe for concurrent use.
type BrokenRules struct {
	entries []BrokenRule
	index   map[brokenKey]int
}

// NewBrokenRules creates an empty collection
func NewBrokenRules() *BrokenRules {
	return &BrokenRules{
		index: make(map[brokenKey]int),
	}
}

// Upsert records a failure, replacing any entry with the same key in place.
// It reports whether the collection changed.
func (b *BrokenRules) Upsert(rule, property string, severity Severity, message string) bool {
	key := brokenKey{rule: rule, property: property}
	if i, ok := b.index[key]; ok {
		existing := b.entries[i]
		if existing.Severity == severity && existing.Message == message {
			return false
		}
		b.entries[i].Severity = severity
		b.entries[i].Message = message
		return true
	}

	b.index[key] = len(b.entries)
	b.entries = append(b.entries, BrokenRule{
		Rule:     rule,
		Property: property,
		Severity: severity,
		Message:  message,
	})
	return true
}

// Remove deletes the entry for (rule, property). It reports whether one existed.
func (b *BrokenRules) Remove(rule, property string) bool {
	key := brokenKey{rule: rule, property: property}
	i, ok := b.index[key]
	if !ok {
		return false
	}

	b.entries = append(b.entries[:i], b.entries[i+1:]...)
	delete(b.index, key)
	for j := i; j < len(b.entries); j++ {
		b.index[brokenKey{rule: b.entries[j].Rule, property: b.entries[j].Property}] = j
	}
	return true
}

// Apply merges a rule outcome: a pass removes the entry, a failure upserts it
func (b *BrokenRules) Apply(r *Rule, res Result) bool {
	if res.Broken {
		return b.Upsert(r.Name, r.Property, r.Severity, res.Message)
	}
	return b.Remove(r.Name, r.Property)
}

// Get returns the entry for (rule, property)
func (b *BrokenRules) Get(rule, property string) (BrokenRule, bool) {
	i, ok := b.index[brokenKey{rule: rule, property: property}]
	if !ok {
		return BrokenRule{}, false
	}
	return b.entries[i], true
}

// All returns every entry in insertion order
func (b *BrokenRules) All() []BrokenRule {
	return append([]BrokenRule(nil), b.entries...)
}

// ForProperty returns the entries of one property in insertion order
func (b *BrokenRules) ForProperty(property string) []BrokenRule {
	var result []BrokenRule
	for _, e := range b.entries {
		if e.Property == property {
			result = append(result, e)
		}
	}
	return result
}

// Worst returns the most severe entry of a property; ties go to the earliest insertion
func (b *BrokenRules) Worst(property string) (BrokenRule, bool) {
	var worst BrokenRule
	found := false
	for _, e := range b.entries {
		if e.Property != property {
			continue
		}
		if !found || e.Severity > worst.Severity {
			worst = e
			found = true
		}
	}
	return worst, found
}

// First returns the earliest entry with the given severity
func (b *BrokenRules) First(severity Severity) (BrokenRule, bool) {
	for _, e := range b.entries {
		if e.Severity == severity {
			return e, true
		}
	}
	return BrokenRule{}, false
}

// IsValid reports whether no Error entry exists
func (b *BrokenRules) IsValid() bool {
	return b.ErrorCount() == 0
}

// IsPropertyValid reports whether a property has no Error entry
func (b *BrokenRules) IsPropertyValid(property string) bool {
	for _, e := range b.entries {
		if e.Property == property && e.Severity == Error {
			return false
		}
	}
	return true
}

// Len returns the number of entries
func (b *BrokenRules) Len() int {
	return len(b.entries)
}

// ErrorCount returns the number of Error entries
func (b *BrokenRules) ErrorCount() int {
	return b.count(Error)
}

// WarningCount returns the number of Warning entries
func (b *BrokenRules) WarningCount() int {
	return b.count(Warning)
}

// InformationCount returns the number of Information entries
func (b *BrokenRules) InformationCount() int {
	return b.count(Information)
}

func (b *BrokenRules) count(severity Severity) int {
	n := 0
	for _, e := range b.entries {
		if e.Severity == severity {
			n++
		}
	}
	return n
}

// Clear removes every entry
func (b *BrokenRules) Clear() {
	b.entries = nil
	b.index = make(map[brokenKey]int)
}

// Snapshot returns a copy of the entries for undo
func (b *BrokenRules) Snapshot() []BrokenRule {
	return b.All()
}

// Restore replaces the entries with a snapshot
func (b *BrokenRules) Restore(snapshot []BrokenRule) {
	b.Clear()
	for _, e := range snapshot {
		b.Upsert(e.Rule, e.Property, e.Severity, e.Message)
	}
}

// String joins the messages of the Error entries, one per line
func (b *BrokenRules) String() string {
	var lines []string
	for _, e := range b.entries {
		if e.Severity == Error {
			lines = append(lines, e.Message)
		}
	}
	return strings.Join(lines, "\n")
}

// Err returns a *ValidationError describing the Error entries, or nil when valid
func (b *BrokenRules) Err() error {
	if b.IsValid() {
		return nil
	}
	verr := NewValidationError()
	for _, e := range b.entries {
		if e.Severity == Error {
			verr.Add(e.Property, e.Message)
		}
	}
	return verr
}
