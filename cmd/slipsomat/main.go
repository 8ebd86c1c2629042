// Command slipsomat synchronizes Alma letter templates with a local working
// copy.
package main

import "github.com/scriptotek/slipsomat/internal/cli"

func main() {
	cli.Execute()
}
