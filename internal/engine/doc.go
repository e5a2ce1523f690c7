// Package engine implements the incremental replication engine that moves
// change records from an analytical warehouse into a Dataverse-style CRM
// entity store.
//
// Architecture:
//
//	ChangeReader  - fetches records changed after a cursor (warehouse)
//	RowMapper     - converts a record into an upsert operation (dataverse)
//	BatchSender   - posts atomic upsert batches to the target (dataverse)
//	watermark     - durable cursor persistence between runs
//	Driver        - orchestrates the read -> map -> batch -> send -> advance loop
//
// The driver processes one page at a time and only advances the watermark
// after every operation derived from that page has been accepted by the
// target, so a crash or failure at any point resumes from the last fully
// replicated page.
package engine
