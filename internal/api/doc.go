// Package api serves the crawler's ops endpoints: /healthz, /readyz,
// /metrics and /v1/run. The server is optional and only runs alongside a
// crawl when metrics.addr is set.
package api
