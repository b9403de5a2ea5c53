// Package sending drives a campaign from a resolved audience to transport
// calls. The Orchestrator takes the per-campaign lock, moves the campaign
// into sending, snapshots the audience as pending engagement records and
// dispatches it in batches through a bounded worker pool. Batch boundaries
// are sync points: counters and failures are persisted before the next batch
// starts, so a crashed or cancelled run can be resumed from the snapshot.
package sending
