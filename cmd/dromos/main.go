// cmd/dromos/main.go
package main

import (
	cmd "github.com/mwiater/dromos/internal/cli"
)

// main starts the dromos CLI application by delegating to the
// cobra root command defined in the dromos package. It does not
// take any arguments and does not return a value.
func main() {
	cmd.Execute()
}
