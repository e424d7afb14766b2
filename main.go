package main

import (
	"os"

	"github.com/radhika-singh-10/state-bootstrap/command"
	"github.com/radhika-singh-10/state-bootstrap/logger"
)

func main() {
	if err := command.NewApp().Run(os.Args); err != nil {
		logger.Log.Fatal(err)
	}
}
