package main

import "github.com/Govind-619/SettleSphere/cmd"

func main() {
	cmd.Execute()
}
