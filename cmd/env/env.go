// Package env holds the environment variable naming scheme of the CLI.
package env

const (
	// Prefix is the common env var prefix for all commands
	Prefix = "VESRATES"

	// DBURLSuffix is the suffix of the Postgres connection string var
	DBURLSuffix = "_DB_URL"
)
