// Package campaign implements the campaign lifecycle.
//
// The state machine in statemachine.go is the only place that decides which
// status changes are legal. The Service applies those decisions through the
// Repository as compare-and-set updates, so a transition either happens
// atomically from an expected state or not at all.
//
// The per-recipient ledger on a campaign is never stored here. Get rebuilds
// it from engagement records through the Ledger interface.
package campaign
