// Package meta holds the static property metadata of business object types.
//
// A TypeInfo is built once per type at process start, then locked and
// registered. After registration it is shared read-only by every instance of
// the type, so no synchronization is needed on the read path.
package meta
