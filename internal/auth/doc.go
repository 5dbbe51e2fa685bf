// Package auth provides operator accounts, password hashing and access tokens.
//
// It implements a two-tier role model (user → admin):
//   - Argon2id password hashing in PHC string format
//   - Stateless HS256 JWT access tokens carrying the role
//   - Static role-permission mapping (compile-time, no database lookup)
//
// Devices do not use this package: they authenticate every telemetry
// submission with their own credential (see package ingest).
package auth
