// Package http provides the HTTP transport for the paramgate server.
//
// The transport mounts the registered actions onto a ServeMux, wraps them
// with request-ID, metrics, and tracing middleware, and exposes the
// operational endpoints: /health, /metrics, /docs/openapi.yaml, and the
// key-protected rejection history under /admin/rejections.
package http
