// cmd/flamecore/main.go
// Entrypoint for the `flamecore` multi-tool CLI binary. The file is
// intentionally tiny: it delegates all logic to the root command defined in
// root.go. Keeping main.go minimal allows unit tests to import cmd/flamecore
// without executing side-effects.
package main

import "os"

func main() {
	os.Exit(Execute())
}
