package main

import "github.com/Norgate-AV/bundler/cmd"

func main() {
	cmd.Execute()
}
