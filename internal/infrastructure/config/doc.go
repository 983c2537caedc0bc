// Package config handles loading and validating bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files (strict: unknown keys rejected)
//   - Overriding with VOLTBRIDGE_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// A missing config file is fine: the defaults plus environment variables are
// enough to describe a single-device bridge, matching the container-first
// deployment model. Device definitions beyond the fallback device live in
// pdus.json under bridge.data_dir, not here.
//
// Security Considerations:
//   - Sensitive values (SNMP community, serial password, web password, JWT
//     secret) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.Broker.Host)
package config
