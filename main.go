package main

import (
	"log"

	"github.com/DannyMichaels/LoL-scrims-finder-sub001/cmd"
)

func main() {
	if err := cmd.Start(); err != nil {
		log.Fatal(err)
	}
}
