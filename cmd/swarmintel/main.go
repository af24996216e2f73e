package main

import (
	"fmt"
	"os"

	"github.com/tillberg/autorestart"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/cli"
)

func main() {
	if os.Getenv("SWARMINTEL_AUTORESTART") == "1" {
		go autorestart.RestartOnChange()
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
