// Package config handles configuration loading for session-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and duration parsing.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	gateway:
//	  access_token: "${SESSIONGW_ACCESS_TOKEN}"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	sessions:
//	  window: "24h"
//	dedupe:
//	  ttl: "48h"
//	sweeper:
//	  interval: "1h"
//	  retention: "96h"
//
// Unset durations are zero; components fall back to their package defaults.
package config
