// Package config handles configuration loading for fold-concierge.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${CONCIERGE_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	conversations:
//	  timeout: "10m"
//	  sweep_interval: "30m"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"   # Operations API
//
// Database:
//
//	database:
//	  path: "/var/lib/concierge/members.db"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${CONCIERGE_JWT_SECRET}"
//
// Conversation timing:
//
//	conversations:
//	  timeout: "10m"         # inactivity before a linking flow expires
//	  sweep_interval: "30m"  # background cleanup cadence
//
// Subscription cache:
//
//	cache:
//	  ttl: "15m"
//	  sweep_interval: "5m"
//	  cache_unknown: false
//	  single_flight: false
//	  prewarm_on_billing_event: false
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
// Load configuration from a path:
//
//	cfg, err := config.Load("/etc/concierge/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
