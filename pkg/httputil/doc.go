// Package httputil provides HTTP support utilities: retry with exponential
// backoff for transient registry failures, and a file-based TTL cache used
// to memoize successful token verifications.
package httputil
