package main

import (
	"bookscout/cmd/bookscout-cli/commands"
	"bookscout/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
