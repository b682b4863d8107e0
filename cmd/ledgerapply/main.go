package main

import "github.com/LeJamon/goLedgerApply/internal/cli"

func main() {
	cli.Execute()
}
