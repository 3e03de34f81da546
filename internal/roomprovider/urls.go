package roomprovider

import (
	"net"
	"net/url"
	"strings"
)

// websocketURL converts an http(s) signaling base into the ws(s) URL browser
// clients pass to Room.connect. Other schemes are returned unchanged.
func websocketURL(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return base
	}
	return u.String()
}

// mediaURL derives the media-plane endpoint: same URL with the signaling port
// replaced by the media port. URLs on any other port are returned unchanged.
func mediaURL(base, signalPort, mediaPort string) string {
	if signalPort == "" || mediaPort == "" {
		return base
	}
	u, err := url.Parse(base)
	if err != nil || u.Port() != signalPort {
		return base
	}
	u.Host = net.JoinHostPort(u.Hostname(), mediaPort)
	return u.String()
}
