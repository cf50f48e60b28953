// Package config holds the runtime settings of the airtouch tools and the
// registry of saved gateways.
//
// # Settings
//
// Load reads an optional YAML file, applies defaults and lets AIRTOUCH_*
// environment variables override any key, with dots replaced by
// underscores:
//
//	gateway:
//	  host: 192.168.1.20
//	  generation: plus
//	session:
//	  backoff:
//	    initial: 1ms
//	    max: 10s
//	logging:
//	  level: info
//
//	AIRTOUCH_GATEWAY_HOST=192.168.1.20 airtouch monitor
//
// # Saved Gateways
//
// The gateway registry lives in a YAML file in the platform configuration
// directory:
//   - Linux: $XDG_CONFIG_HOME/airtouch/gateways.yaml or $HOME/.config/airtouch/gateways.yaml
//   - macOS: $HOME/.config/airtouch/gateways.yaml
//   - Windows: %LOCALAPPDATA%\airtouch\gateways.yaml
//
// Writes go to a temporary file that is renamed over the original.
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	registry.SetGateway("home", config.Gateway{Host: "192.168.1.20", Port: 9200})
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
package config
