// Package config loads, normalizes, and validates imgcat configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// IMGCAT_CATALOG_DSN and per-source <NAME>_TOKEN variables. The Config value is
// built once per process and passed by pointer into every entry point; the
// reconciliation packages never consult the environment themselves.
//
// The order of the [[sources]] tables is significant: it fixes the index of
// each source in the per-source hash and presence vectors stored in the
// catalog.
package config
