// Package sensor holds the in-memory sensor objects whose current values are
// encoded into line protocol records.
//
// Three kinds exist:
//
//   - Binary: an on/off state, rendered as 1i/0i.
//   - Numeric: a raw reading plus a calibrated value (raw × multiply + offset).
//   - Text: a raw string plus a processed value looked up in an optional map.
//
// Every sensor reports HasState() == false until its first sample; an absent
// sample is distinct from a zero or empty one. Sensors are safe for
// concurrent use: the MQTT binder updates them from subscription goroutines
// while publish jobs read them.
//
// Usage:
//
//	reg := sensor.NewRegistry()
//	temp := sensor.NewNumeric("boiler_temp", sensor.Calibration{Multiply: 0.1})
//	if err := reg.Add(temp); err != nil {
//	    return err
//	}
//	binder := sensor.NewBinder(reg, mqttClient, 1)
//	binder.Bind(sensor.Binding{SensorID: "boiler_temp", Topic: "home/boiler/temp"})
//	if err := binder.Start(); err != nil {
//	    return err
//	}
package sensor
