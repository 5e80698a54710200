package main

import (
	"log"

	"github.com/Flugers27/Memory-book/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
