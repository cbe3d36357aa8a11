package main

import (
	"os"

	"irisml/internal/logging"
)

func main() {
	logging.InitFromEnv()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
