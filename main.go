package main

import (
	"github.com/kolibrisuite/chatsync/cmd"
)

func main() {
	cmd.Execute()
}
