// Package tracking owns everything that touches tracked mail after it
// leaves the orchestrator: the link codec that instruments outgoing HTML,
// the public open/click/unsubscribe endpoints and the SQS publisher and
// consumer that decouple those endpoints from the engagement store.
package tracking
