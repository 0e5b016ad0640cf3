package main

import "github.com/airview/airview/cmd/airview-ctl/cmd"

func main() {
	cmd.Execute()
}
