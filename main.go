package main

import "github.com/shen-assistant/shen/cmd"

func main() {
	cmd.Execute()
}
