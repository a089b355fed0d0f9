package main

import (
	"github.com/ncbi/vadr-sub003/cmd"
)

func main() {
	cmd.Execute() // initialize cobra commands
}
