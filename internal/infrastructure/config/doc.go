// Package config handles loading and validating Gray Logic Radio configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - JWT secrets must be changed from defaults before production use
//
// Safety Considerations:
//   - The transmitter poll interval is validated against the device
//     watchdog window; a poll slower than the watchdog would let the
//     hardware cut the carrier between heartbeats
//
// Performance Characteristics:
//   - Configuration is loaded once at startup
//   - No runtime overhead after initial load
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.TransmitterAddr())
package config
