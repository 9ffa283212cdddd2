package main

import "github.com/DRSN-tech/visual-search/internal/cli"

func main() {
	cli.Execute()
}
