// Package auth provides API key authentication for the ingestion endpoint.
//
// APIKey wraps an http.Handler. When mode is "apikey" and a key is configured
// (via the environment variable named in server.auth.key_env), requests must
// carry the key in the configured header or receive 401 Unauthorized. Any
// other mode passes every request through.
package auth
