// Package id generates the opaque identifiers TaleForge mints itself: token and event
// stream ids on the server, request correlation ids on the client.
//
// Story, user and comment ids are assigned by the server's numeric sequences and never
// come from this package.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for the identifiers minted locally.
const (
	PrefixToken   = "tok"
	PrefixRequest = "req"
	PrefixStream  = "sse"
)

// requestIDLength keeps correlation ids short enough to scan in log lines.
const requestIDLength = 12

// Generate creates a prefixed NanoID, e.g. "tok-V1StGXR8_Z5jdHi6B-myT".
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if the system has no entropy.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// Request returns a short correlation id for an outbound request.
// Falls back to a fixed marker instead of failing the request.
func Request() string {
	id, err := gonanoid.New(requestIDLength)
	if err != nil {
		return PrefixRequest + "-unknown"
	}
	return PrefixRequest + "-" + id
}
