package main

import "github.com/propertyhub/propertyhub/cmd/phctl/cli"

func main() {
	cli.Execute()
}
