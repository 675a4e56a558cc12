// Package config loads, normalizes, and validates reframe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// REFRAME_INPUT_DIR. The Config type centralizes every knob the daemon and CLI
// need: watched and output directories, the ffmpeg composition profile, retry
// policy, logging, and notifications.
//
// Components never read Config directly at runtime; the wiring code converts
// it into immutable option structs once at startup.
package config
