// Caches for rule set documents, stored as JSON strings with a fixed TTL and purging.
//
// Includes a string-keyed store interface, implementations using redis and in-process memory, and typed helpers for rule sets scoped to a guild or to the global set.
//
// The rules engine uses this so that the rule-set database isn't hit for every gateway event.
package cachestore
