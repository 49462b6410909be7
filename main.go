package main

import (
	"log"

	"promptbench/cmd/server"
)

func main() {
	if err := server.Run(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
