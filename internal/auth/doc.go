// Package auth provides authentication and authorisation for Gray Logic Radio.
//
// It implements a 3-tier role model (viewer → operator → admin) with:
//   - Argon2id password hashing (OWASP 2025 recommendation)
//   - Short-lived HS256 JWT access tokens validated by signature only
//   - Static role-permission mapping (compile-time, no database lookup)
//
// The roles are deliberately coarse: viewers watch the console, operators
// drive the transmitter, admins additionally manage accounts and programs.
// There is no per-resource scoping — the system controls exactly one
// physical device.
package auth
