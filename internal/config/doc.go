// Package config loads and watches the rolling median configuration file
// (config.yaml).
//
// Top-level types:
//   - Config: window, log_level, input, output, server, redis, alerts
//   - InputConfig: optional replay file and max line size
//   - OutputConfig: optional output file and decimal precision
//   - ServerConfig: http_port, broadcast_interval, auth
//   - RedisConfig: shipper address, channel, password_env, buffer_size
//   - AlertsConfig: rules and webhooks; URL() resolves from the environment
//
// Load(path) reads the YAML file, applies defaults (60s window, info logging,
// precision 2, port 8080, 5s broadcast, 1000 buffer), then validates.
// Defaults() returns the same defaults for callers running without a file.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. Atomic-save editors replace the
// inode, so the watch is re-added after every reload.
package config
