// Package mqtt provides MQTT client connectivity for linepush.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Sensor topic subscriptions, restored after every reconnect
//   - Retained status topics and Last Will and Testament (LWT)
//   - Connection health and message counters for Prometheus
//
// # Architecture
//
// Sensors publish their readings to MQTT. sensor.Binder subscribes each
// configured topic through this client and feeds the payloads into the
// sensor registry, from which measurements are rendered to line protocol.
//
//	Devices → MQTT Broker → linepush → InfluxDB
//
// linepush also publishes its own state under linepush/#: the system
// status (with LWT) and the retained delivery status of each destination.
//
// # Security Considerations
//
//   - Enable TLS when the broker is not on localhost (cfg.Broker.TLS=true)
//   - Credentials come from config or LINEPUSH_MQTT_USERNAME / _PASSWORD
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe("sensors/boiler/temp", 1,
//	    func(topic string, payload []byte) error {
//	        return boilerTemp.UpdateFromPayload(string(payload))
//	    })
package mqtt
