package channels

// EventChannelsConfig configures buffer sizes for event channels
type EventChannelsConfig struct {
	AlertBufferSize       int
	DeviceStateBufferSize int
	CycleBufferSize       int
}

// DefaultConfig returns the buffer sizes used by the server
func DefaultConfig() EventChannelsConfig {
	return EventChannelsConfig{
		AlertBufferSize:       256,
		DeviceStateBufferSize: 128,
		CycleBufferSize:       128,
	}
}
