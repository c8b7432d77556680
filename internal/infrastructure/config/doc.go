// Package config loads config.yaml into a Config and validates it.
//
// Load reads the file, applies defaults, then lets LINEPUSH_* environment
// variables override individual values. Secrets belong in the environment
// (LINEPUSH_INFLUXDB_TOKEN, LINEPUSH_MQTT_PASSWORD) rather than the file.
//
// Validation collects every problem before failing, so one run reports all
// bad sensors, destinations, measurements and publish jobs:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err // lists each invalid field
//	}
package config
