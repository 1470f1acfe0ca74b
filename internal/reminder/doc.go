// Package reminder is the daily reminder engine.
//
// A Resolver maps the wall clock onto the civil calendar of the configured
// timezone and yields today's window: today plus the calendar-aware
// tomorrow. Once per day, at the trigger hour, the Producer lists the events
// inside that window and pushes them onto an in-memory Queue. The Consumer
// pops one event at a time, resolves its owner, classifies it as OnTheDay
// or BeforehandInOneDay, consults the idempotency ledger, delivers the
// rendered text through a notifier.Sender and records the terminal outcome.
//
// Engine owns the queue and both loops and is the only lifecycle handle the
// application needs.
package reminder
