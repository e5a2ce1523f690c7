// Package dataverse implements the target side of the replication engine:
// mapping change records to alternate-key upsert operations, encoding them
// into the Dataverse $batch multipart format, and posting envelopes through
// the resilient transport with app-only bearer auth.
//
// Structure:
//
//	mapper.go - ChangeRecord -> UpsertOperation (alternate-key addressing)
//	batch.go  - atomic batch/changeset envelope encoder
//	client.go - $batch poster over the retry transport
//	auth.go   - client-credentials token source (Microsoft identity platform)
package dataverse
