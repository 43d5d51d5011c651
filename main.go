// main is the entry point for the exprora CLI.
package main

import (
	"os"

	"github.com/huangsam/exprora/cmd"
	"github.com/huangsam/exprora/internal/contract"
	"github.com/huangsam/exprora/internal/datastore"
)

func main() {
	err := cmd.Execute()
	datastore.CloseStore()
	if err != nil {
		contract.LogFatal("exprora", err)
	}
	os.Exit(0)
}
