// Package verify decides whether a submission is authentic.
//
// A submission is verified only when all of these hold:
//   - its authenticity score reaches the acceptance threshold
//   - the caller-supplied dwell time reaches the minimum
//   - its synthetic writing pattern looks human
//   - its dedup hash has not been accepted before in this scope
//
// The outcome is a bare boolean. No reason is ever surfaced: the ritual does
// not explain itself. Accepted verifications are kept in a bounded ledger
// that doubles as the duplicate filter.
package verify
