// Package httputil holds the JSON response helpers shared by the admin API
// and the tracking service, so every endpoint returns the same error envelope.
package httputil
