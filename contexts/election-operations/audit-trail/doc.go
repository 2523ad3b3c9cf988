// Package audittrail keeps an immutable record of vote events inside
// the election-operations context.
//
// Entries are produced by consuming vote.recorded events from the bus,
// never by direct writes from request handlers, so the trail reflects
// committed ballots only. Entries deliberately carry no voter identity.
package audittrail
