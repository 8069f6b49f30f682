package main

import (
	"github.com/betagouv/assistant-declaration/cmd"
)

func main() {
	cmd.Execute()
}
