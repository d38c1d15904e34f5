// Package api hosts the HTTP servers of both process roles.
//
// Worker role:
//   - PUT/DELETE/GET /assignments for the coordinator's assignment pushes.
//   - POST /heartbeat for health probes; it also refreshes the keep-alive.
//
// Coordinator role (diagnostics):
//   - GET /v1/tasks, /v1/workers, /v1/workers/{worker_id}/assignments, /v1/rounds/last.
//   - POST /v1/rounds and /v1/sources/refresh to run a loop out of band.
//
// Both expose GET /healthz and GET /metrics; the coordinator adds GET /readyz.
package api
