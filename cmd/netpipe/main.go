// netpipe: width-bounded, outflow-capped packet channels.
package main

import "github.com/corbin-r/net-pipe/internal/cli"

func main() {
	cli.Execute()
}
