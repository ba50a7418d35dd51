package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"codecell/engine"
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Run a cell once",
	Long: `Execute a JavaScript cell in a fresh isolated context.

Code can be provided via:
  - File argument: codecell run cell.js
  - Inline flag: codecell run -c 'console.log(1+1)'
  - Stdin: echo 'console.log(1+1)' | codecell run`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRun,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("code", "c", "", "Code to execute")
	cmd.Flags().Bool("quiet", false, "Suppress diagnostics on stderr")
}

func runRun(cmd *cobra.Command, args []string) {
	code, _ := cmd.Flags().GetString("code")
	quiet, _ := cmd.Flags().GetBool("quiet")

	var source string
	switch {
	case code != "":
		source = code
	case len(args) > 0:
		data, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		source = string(data)
	default:
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) != 0 {
			cmd.Help()
			return
		}
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		source = string(data)
		if source == "" {
			cmd.Help()
			return
		}
	}

	eng, log := newEngine(cmd)
	defer log.Sync()

	failed := false
	for ev := range eng.Invoke(context.Background(), source) {
		switch ev.Kind {
		case engine.EventDiagnostics:
			if quiet {
				continue
			}
			for _, d := range ev.Diagnostics {
				fmt.Fprintf(os.Stderr, "%s: %s\n", d.Severity, d.Message)
			}
		case engine.EventOutput:
			fmt.Println(renderOutput(ev.Data))
		case engine.EventFailure:
			fmt.Fprintf(os.Stderr, "Error: %s\n", ev.Message)
			failed = true
		case engine.EventSuccess:
		}
	}

	if failed {
		os.Exit(1)
	}
}
