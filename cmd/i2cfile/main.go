package main

import (
	"github.com/nitinp/i2cfile/cmd/i2cfile/cmd"
)

func main() {
	cmd.Execute()
}
