package main

import (
	"log"

	"github.com/spf13/afero"
)

func main() {
	err := newRootCmd(afero.NewOsFs()).Execute()
	if err != nil {
		log.Fatal(err)
	}
}
