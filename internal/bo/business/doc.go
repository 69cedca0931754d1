// Package business assembles the metadata, field store, rule engine, undo
// stack, authorization gate and change notifier into business objects and
// child collections.
//
// An Object or List is owned by one goroutine at a time. Asynchronous rules
// run on the runtime's scheduler and post their results to the owning
// instance's mailbox; results are merged only when the owner calls a
// mutating method, ProcessCompletions or WaitIdle.
package business
