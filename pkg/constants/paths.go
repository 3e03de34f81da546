package constants

// Пути health, ready, gateway и префикс REST API трансляций.
const (
	PathHealth  = "/health"
	PathReady   = "/ready"
	PathGateway = "/ws/streams"
	PathStreams = "/streams"
)
