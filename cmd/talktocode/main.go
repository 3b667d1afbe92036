package main

import (
	"github.com/joho/godotenv"

	"talktocode/internal/cli"
)

func main() {
	// Load .env if present; real environment variables take precedence.
	godotenv.Load()

	cli.Execute()
}
