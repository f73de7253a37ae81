package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/engramdb/engram/internal/engine"
)

var (
	maintainCompress bool
	maintainMerge    bool
	maintainCleanup  bool
)

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run maintenance cycles once and save the snapshot",
	Long: "Run the compression, merge, and cleanup passes one time instead of on the " +
		"scheduler. With no flags all three run, in that order.",
	RunE: runMaintain,
}

func init() {
	maintainCmd.Flags().BoolVar(&maintainCompress, "compress", false, "Run the compression pass")
	maintainCmd.Flags().BoolVar(&maintainMerge, "merge", false, "Run the batch-merge pass")
	maintainCmd.Flags().BoolVar(&maintainCleanup, "cleanup", false, "Run the cleanup pass")
}

func runMaintain(cmd *cobra.Command, args []string) error {
	all := !maintainCompress && !maintainMerge && !maintainCleanup

	a, err := openApp()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	type pass struct {
		name    string
		enabled bool
		run     func(context.Context) engine.CycleStats
	}
	passes := []pass{
		{"compress", all || maintainCompress, a.eng.RunCompression},
		{"merge", all || maintainMerge, a.eng.RunMerge},
		{"cleanup", all || maintainCleanup, a.eng.RunCleanup},
	}

	for _, p := range passes {
		if !p.enabled {
			continue
		}
		stats := p.run(ctx)
		fmt.Printf("%-8s examined=%d changed=%d errors=%d in %s\n",
			p.name, stats.Examined, stats.Changed, stats.Errors, stats.Duration.Round(time.Millisecond))
	}

	return a.Close()
}
