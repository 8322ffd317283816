// Package token hashes bearer secrets (access and refresh tokens) before they
// reach storage.
//
// Two modes:
//   - SHA-256(token) when no key is configured (dev).
//   - HMAC-SHA256(token, key) when GATE_TOKEN_HMAC_KEY is set.
//
// Both produce a 64-char lowercase hex digest, which is what the sessions table
// stores and indexes. Plaintext tokens never leave the process.
package token
