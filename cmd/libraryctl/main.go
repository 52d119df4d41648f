// Command libraryctl is the operator CLI: schema migrations and admin
// account management.  Admins cannot be created over HTTP.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(defaultEnv()).Execute(); err != nil {
		os.Exit(1)
	}
}
