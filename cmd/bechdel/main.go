package main

import (
	"os"

	"github.com/YuminosukeSato/bechdel/pkg/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.GetLoggerWithName("cli").Error("command failed", err)
		os.Exit(1)
	}
}
