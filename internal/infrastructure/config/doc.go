// Package config loads and validates SmartLight Core configuration.
//
// Configuration comes from a YAML file with environment variable
// overrides (SMARTLIGHT_* pattern). Defaults are suitable for local
// development against an embedded broker; production deployments must
// set at least the JWT secret and broker credentials.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
