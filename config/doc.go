// Package config loads the gateway configuration from the environment.
//
// Defaults live in the struct tags of Config. Command-line flags in
// cmd/trustgate override individual fields after Load.
package config
