// Package config holds the explicit channel configuration for the hermes
// notification pipeline. Resolution from the environment is a boundary
// concern done once via FromEnv; nothing inside the pipeline reads
// environment variables.
package config
