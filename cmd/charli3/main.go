package main

import "github.com/Charli3-Official/charli3-push-oracle-sdk/internal/cli"

func main() {
	cli.Execute()
}
