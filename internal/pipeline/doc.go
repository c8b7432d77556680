// Package pipeline assembles linepush from its configuration.
//
// Build turns the sensors, InfluxDB destinations and measurements declared
// in config.yaml into live objects:
//
//	sensors:   config → sensor.Registry, bound to MQTT topics by sensor.Binder
//	influxdb:  config → one influxdb.Client per destination (own backlog)
//	measures:  config → influxdb.Measurement, fields wired to registry sensors
//
// The resulting Pipeline publishes measurements by id, singly or as a
// batch, and mirrors each destination's delivery status to MQTT when a
// status publisher is supplied.
package pipeline
