package main

import "github.com/emrgen/digidoc/cmd"

func main() {
	cmd.Execute()
}
