package mqtt

import "fmt"

// Topic prefixes for topics published by linepush itself. Sensor topics
// are whatever the devices publish and come from config.
const (
	// TopicPrefix is the root of every linepush topic.
	TopicPrefix = "linepush"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "linepush/system"

	// TopicPrefixDestination is the base for per-destination topics.
	TopicPrefixDestination = "linepush/destination"
)

// Topics provides builders for linepush MQTT topics.
//
//	topics := mqtt.Topics{}
//	statusTopic := topics.DestinationStatus("main")
//	// Returns: "linepush/destination/main/status"
type Topics struct{}

// SystemStatus returns the topic for daemon online/offline status (LWT).
//
// Example: linepush/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// DestinationStatus returns the retained topic carrying an InfluxDB
// destination's delivery status (backlog depth, last error).
//
// Example: linepush/destination/main/status
func (Topics) DestinationStatus(destinationID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixDestination, destinationID)
}

// AllDestinationStatus returns a wildcard for every destination status.
//
// Example: linepush/destination/+/status
func (Topics) AllDestinationStatus() string {
	return fmt.Sprintf("%s/+/status", TopicPrefixDestination)
}

// All returns a wildcard for every linepush topic.
//
// Example: linepush/#
func (Topics) All() string {
	return fmt.Sprintf("%s/#", TopicPrefix)
}
