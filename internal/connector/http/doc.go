// Package http provides the resilient HTTP transport used for all target
// system calls.
//
// Structure:
//
//	client.go - HTTP client with rate limiting and backoff-on-throttle retry
//	auth.go   - Bearer token authentication hook
package http
