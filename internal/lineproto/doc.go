// Package lineproto renders sensor values as InfluxDB line protocol records.
//
// A Line owns a literal prefix (escaped measurement name plus tags) and an
// ordered set of Fields. Each Field knows how to render one sensor's current
// value; fields whose sensor has never reported a value are skipped.
//
// # Wire format
//
//	<prefix>[ <field>=<value>[,<field>=<value>...]][ <unix-seconds>]\n
//
// Value encodings:
//   - binary sensors: 1i / 0i
//   - numeric sensors: float (no suffix), signed integer (i) or unsigned integer (u)
//   - text sensors: double-quoted string
//
// # Usage
//
//	prefix := lineproto.Prefix("climate", lineproto.Tag{Key: "room", Value: "kitchen"})
//	line := lineproto.NewLine(prefix,
//	    lineproto.NewNumericField(tempSensor, "temp", lineproto.FormatFloat, 2, false),
//	    lineproto.NewBinaryField(doorSensor, ""),
//	)
//	record := line.Render(" 1700000000")
//	// climate,room=kitchen temp=21.50,door_open=1i 1700000000\n
//
// # Thread Safety
//
// Rendering only reads sensor state; sensors guard their own state. A Line
// must not be modified (Add) while it is being rendered.
package lineproto
