// Package dispatcher runs the dispatch cycle: acquire the scheduler lock,
// check the global rate floor, atomically extract a batch, deliver each
// item with fixed spacing, and drain. Failed sends are rescheduled with
// backoff while their items stay in-flight; exhausted items are dropped
// terminally. Only one cycle runs at a time across all processes.
package dispatcher
