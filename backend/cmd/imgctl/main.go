package main

import "github.com/ravigill3969/image-converter/backend/cli"

func main() {
	cli.Execute()
}
