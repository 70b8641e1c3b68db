package main

import "github.com/aqasim81/session-migrate/internal/cli"

func main() {
	cli.Execute()
}
