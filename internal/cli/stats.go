package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/engramdb/engram/internal/engine"
	"github.com/engramdb/engram/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show corpus statistics",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.db.Close() // read-only; no save

	snap := a.eng.Snapshot("", engine.CycleStats{})

	fmt.Printf("%s %s\n", labelStyle.Render("snapshot"), valueStyle.Render(a.db.Path))
	fmt.Printf("%s %s\n", labelStyle.Render("records"), valueStyle.Render(fmt.Sprintf("%d (%d live)", snap.Total, snap.Live)))
	fmt.Printf("%s %s\n\n", labelStyle.Render("owners"), valueStyle.Render(fmt.Sprintf("%d", len(a.st.Owners()))))

	fmt.Println("tiers")
	for _, tier := range store.Tiers() {
		if n := snap.PerTier[tier]; n > 0 {
			fmt.Printf("%s %s\n", labelStyle.Render("  "+string(tier)), factorStyle.Render(fmt.Sprintf("%d", n)))
		}
	}

	fmt.Println("\ncategories")
	for _, cat := range store.Categories() {
		if n := snap.PerCategory[cat]; n > 0 {
			fmt.Printf("%s %s\n", labelStyle.Render("  "+string(cat)), factorStyle.Render(fmt.Sprintf("%d", n)))
		}
	}

	w := snap.Weights
	if w.Max > 0 {
		fmt.Printf("\n%s %s\n", labelStyle.Render("weights"),
			valueStyle.Render(fmt.Sprintf("min %.3f  mean %.3f  max %.3f", w.Min, w.Mean, w.Max)))
	}
	return nil
}
