package main

import "github.com/frahmantamala/ledger-console/cmd"

func main() {
	cmd.Execute()
}
