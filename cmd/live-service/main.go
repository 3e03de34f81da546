// Package main: точка входа live-service (HTTP + WebSocket).
package main

import (
	"log"

	"github.com/vybekart-ssh/Vybekart-Backend/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
