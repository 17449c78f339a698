package models

// MQTTConfig holds MQTT broker configuration.
type MQTTConfig struct {
	Broker      string
	ClientID    string
	TopicPrefix string // default "wakeonlan"
	Username    string // optional
	Password    string // optional
}
