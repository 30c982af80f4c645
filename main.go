package main

import (
	"github.com/maxgio92/stackprof/pkg/cmd"
)

func main() {
	cmd.Execute()
}
