// Package aggregate buffers accepted VIN candidates for one session and
// decides when voting is over.
//
// The Aggregator appends candidates in arrival order until the buffer holds
// exactly its capacity, then elects a winner and deactivates itself. That is
// the only stopping condition: an aggregator that never fills stays active
// until Stop is called. Winner selection groups candidates by VIN and scores
// each group as count times mean confidence; ties go to the group seen
// earliest.
//
// Accept is safe for concurrent use. The active flag is checked before the
// buffer lock so stopped aggregators reject without contention.
package aggregate
