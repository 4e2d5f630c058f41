// Package config provides application configuration management.
//
// The config package handles loading and validation of the application's
// configuration from YAML files and the environment. It covers server
// settings, the session storage location, execution engine parameters,
// and the optional safety checker.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Sessions base dir: %s\n", cfg.Sessions.BaseDir)
package config
