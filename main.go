// main.go
package main

import "github.com/gum798/CoinCompass/cmd"

func main() {
	cmd.Execute()
}
