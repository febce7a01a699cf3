// Command portaljit runs the bundled sample programs under the JIT control
// plane.
package main

import "github.com/funvibe/portaljit/pkg/cli"

func main() {
	cli.Main()
}
