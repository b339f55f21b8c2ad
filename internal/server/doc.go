// Package server exposes the HTTP monitoring and control API of the
// capture service.
package server
