// Package rules implements the validation engine of business objects.
//
// A Graph is built once per business type and lists every rule with the
// properties that trigger it and the properties it asks to re-validate. A
// Runner executes the cascade of rules for a single property change against a
// consistent view of the instance's fields, merging the outcomes into a
// BrokenRules collection. Asynchronous rules run on an AsyncQueue and hand
// their results back to the owning instance, which merges them on its own
// goroutine.
package rules
