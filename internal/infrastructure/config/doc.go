// Package config handles loading and validating RoomWatch Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with ROOMWATCH_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Sensitive values (MQTT password, JWT secret, bootstrap admin password)
// should be supplied through the environment, not the YAML file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Site.Name)
package config
