package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

var version = "dev"

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"Config file (YAML or JSON)." short:"c" type:"path" default:"./config.yaml" env:"RADARSCHED_CONFIG"`

	Run     RunCmd     `cmd:"" help:"Run the scheduler until interrupted." default:"1"`
	Check   CheckCmd   `cmd:"" help:"Build and validate the configured timeline."`
	Resolve ResolveCmd `cmd:"" help:"Print the resolved schedule for a moment."`
	Ledger  struct {
		Has    LedgerHasCmd    `cmd:"" help:"Report whether an action already ran."`
		Record LedgerRecordCmd `cmd:"" help:"Mark an action as executed."`
	} `cmd:"" help:"Inspect the execution ledger."`
}

// Globals is bound into every command's Run method.
type Globals struct {
	Config string
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("radarsched"),
		kong.Description("Timeline scheduler: decides which pipeline actions run at each tick."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": version},
	)

	if err := ctx.Run(&Globals{Config: CLI.Config}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
