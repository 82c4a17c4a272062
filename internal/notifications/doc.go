// Package notifications delivers station alerts via ntfy.
//
// The ntfy topic is read from the [notifications] section of config.toml. When
// no topic is configured the service degrades to a no-op, so callers never need
// to check whether alerts are enabled. Transient delivery failures are retried
// with exponential backoff; 4xx responses are not retried.
package notifications
