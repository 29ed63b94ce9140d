package main

import "sjsage522/pricecompare/cmd"

func main() {
	cmd.Execute()
}
