package service

import (
	"strings"

	"github.com/vybekart-ssh/Vybekart-Backend/pkg/constants"
)

// WSConfig holds the public base of the realtime gateway for responses.
type WSConfig struct {
	BaseURL string
}

// GatewayURL returns the URL clients open to receive room events (e.g. wss://live.example.com/ws/streams).
// Without a base it returns the path alone so clients resolve it against the API host.
func (c *WSConfig) GatewayURL() string {
	if c == nil || c.BaseURL == "" {
		return constants.PathGateway
	}
	return strings.TrimRight(c.BaseURL, "/") + constants.PathGateway
}
