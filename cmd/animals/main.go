// Command animals runs the animals REST service and talks to it.
//
//	animals serve                       start the HTTP service
//	animals list [--type dog]           list animals
//	animals get 1                       show one animal
//	animals create --name Rex --type dog
//	animals replace 1 --name Rex --type dog
//	animals patch 1 --name Rexy
//	animals delete 1
//
// @title          Animals API
// @version        1.0
// @description    REST service for the animals collection.
// @BasePath       /api
package main

import (
	"errors"
	"fmt"
	"os"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
