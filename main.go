package main

import (
	"log"

	"github.com/veremin/rfp-copilot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
