// Package cron fires recurring job triggers from cron expressions.
//
// A single goroutine owns a min-heap of Triggers sorted by fire time and
// sleeps until the earliest one, with a 60-second max-sleep-cap to cope with
// NTP steps, DST transitions and system sleep. After a trigger fires its next
// occurrence is computed and pushed back. Nothing is persisted: the daemon
// rebuilds the heap from its configured jobs on every start.
package cron
