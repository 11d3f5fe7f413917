package main

import (
	"os"

	"forged/internal/forgectl"
)

func main() {
	os.Exit(forgectl.Main(os.Args[1:]))
}
