package models

import "time"

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// TelegramMessage holds the data for a device notification.
type TelegramMessage struct {
	Kind      EventType
	Timestamp time.Time

	DeviceAddress string
	DeviceMAC     string

	// Availability (EventDeviceAvailabilityChanged).
	Available bool

	// Wake outcome (EventWakeResult).
	WakeResult WakeResult
}

// TelegramResult holds the result of a Telegram notification.
type TelegramResult struct {
	MessageSent bool
	Error       error
}
