package main

import (
	"os"

	meshmindcmder "github.com/meshmindco/meshmind/cmd/meshmind"
)

func main() {
	cmd := meshmindcmder.NewMeshmindCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
