package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/engramdb/engram/internal/engine"
	"github.com/engramdb/engram/internal/store"
)

var (
	searchOwner string
	searchMode  string
	searchLimit int
)

var (
	rankStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	tierStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	textStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	explainStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search memories",
	Long: "Rank an owner's memories against a query. Normal mode surfaces only full " +
		"and summary tiers; review mode also resurfaces compressed and archived content.",
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchOwner, "owner", "", "Owner as device:user (required)")
	searchCmd.Flags().StringVarP(&searchMode, "mode", "m", "normal", "Query mode: normal, review, or debug")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "Maximum number of results")
	searchCmd.MarkFlagRequired("owner")
}

func runSearch(cmd *cobra.Command, args []string) error {
	owner, err := store.ParseOwnerKey(searchOwner)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.db.Close() // read-only; no save

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	results, err := a.eng.Retrieve(ctx, engine.Query{
		Owner: owner,
		Text:  strings.Join(args, " "),
		Mode:  engine.Mode(searchMode),
		Limit: searchLimit,
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	for i, r := range results {
		fmt.Printf("%s %s %s %s\n",
			rankStyle.Render(fmt.Sprintf("%d.", i+1)),
			scoreStyle.Render(fmt.Sprintf("[%.3f]", r.Score)),
			tierStyle.Render(string(r.Record.Meta.Tier)),
			scoreStyle.Render(r.Record.ID))
		fmt.Printf("   %s\n", textStyle.Render(r.Record.Text))
		fmt.Printf("   %s\n\n", explainStyle.Render(r.Explanation))
	}
	return nil
}
