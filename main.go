// The main package for the muniwatch executable.
package main

import (
	"github.com/muniwatch/muniwatch/cmd"
)

func main() {
	cmd.Execute()
}
