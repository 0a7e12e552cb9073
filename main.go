// ./main.go
package main

import (
	"os"

	"github.com/xkilldash9x/intentcheck/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
