// Package api exposes the optional HTTP status surface for a running
// pipeline. It serves liveness and progress endpoints so operators can
// observe long batch runs without tailing logs.
package api
