package main

import "github.com/kumudkode/lms-apiserver/cmd"

func main() {
	cmd.Execute()
}
