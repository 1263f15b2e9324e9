// Package config loads the querystate server configuration.
//
// The configuration is stored in querystate.yaml (or querystate.json) in the
// working directory. Durations are Go duration strings.
//
// # Configuration File Structure
//
//	server:
//	  host: localhost
//	  port: 8080
//	  shutdownTimeout: 5s
//	queue:
//	  throttle: 50ms
//	  rateLimitFactor: 1
//	defaults:
//	  history: replace
//	  shallow: true
//	  scroll: false
//	  clearOnDefault: false
//	metrics:
//	  enabled: true
//	  path: /metrics
//	  namespace: querystate
//	logLevel: info
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listening on", cfg.Address())
package config
