// Package main is the entry point for the snippethub server and CLI.
//
// main stays minimal: configuration, wiring and the command tree live in
// internal/cli, internal/config and internal/server.
//
//	snippethub serve              run the HTTP API
//	snippethub migrate up|down|status
//	snippethub search [query]     query a running server
package main

import (
	"os"

	"github.com/sakif/snippethub/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
