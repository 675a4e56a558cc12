// Package notifications delivers conversion events via ntfy.
//
// The ntfy implementation posts plain-text messages to the topic URL configured
// in config.toml and degrades to a no-op when no topic is set. Success and
// poison notifications can be disabled independently.
package notifications
