// Package engagement is the tracking engine: it records sends, opens,
// clicks, unsubscribes, bounces and conversions against one record per
// (campaign, email).
//
// Every write is an upsert through Repository.Upsert, which creates the
// record if needed and then mutates it under a per-key lock. Boolean flags
// flip once, first-event timestamps are set once, and per-hit counts grow
// on every hit. Campaign aggregates move only when a flag flips, so repeat
// hits never inflate them.
package engagement
