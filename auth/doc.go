// Package auth handles trust tokens: where they come from, whether they are
// well-formed, which cache partition they own, and whether the backend
// still trusts them.
//
// Format checks (ValidateFormat) are pure and run on every request.
// Trust checks go to the backend through HTTPValidator, normally behind a
// ValidationCache so repeated lookups within the TTL cost nothing.
//
// Raw tokens are never logged and never used as map keys; PartitionKey,
// HashToken and TokenSignature derive stable one-way identities instead.
package auth
