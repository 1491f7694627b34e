// Package api implements the HTTP REST API and WebSocket server for Gray Logic Radio.
//
// This package provides:
//   - REST endpoints for transmitter control, channel configuration, and programs
//   - WebSocket hub for real-time transmitter event broadcasts
//   - JWT authentication with role-based permissions and ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS)
//   - TLS support for production deployments
//
// # Architecture
//
// The API server sits between operator interfaces (web dashboard, mobile)
// and the transmitter supervisor. Control requests are executed directly
// against the supervisor; state change and watchdog events flow back out
// to WebSocket clients via the hub, which the daemon feeds from the
// supervisor's event bus.
//
// # Security
//
// Authentication uses JWT access tokens issued at /auth/login. Every
// mutating route is gated on a role permission: operators can drive the
// transmitter, admins additionally manage accounts and wipe data.
// WebSocket connections use single-use tickets to prevent token leakage
// in URLs.
//
// # Graceful Degradation
//
// The server operates without MQTT or the time-series database — those
// endpoints return 503 while the rest keep working. Transmitter control
// degrades to 503 whenever the supervisor has lost the device link.
package api
