// -- main.go --
package main

import "github.com/xkilldash9x/navsync/cmd"

func main() {
	cmd.Execute()
}
