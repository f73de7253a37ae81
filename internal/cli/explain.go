package cli

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/engramdb/engram/internal/store"
)

var (
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(16)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	factorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	totalStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	noteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var explainCmd = &cobra.Command{
	Use:   "explain [record-id]",
	Short: "Show the six-factor weight breakdown for a record",
	Args:  cobra.ExactArgs(1),
	RunE:  runExplain,
}

func runExplain(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.db.Close() // read-only; no save

	exp, err := a.eng.ExplainWeight(args[0])
	if errors.Is(err, store.ErrNotFound) {
		fmt.Printf("record %s: not found\n", args[0])
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", labelStyle.Render("record"), valueStyle.Render(exp.ID))
	fmt.Printf("%s %s\n", labelStyle.Render("text"), valueStyle.Render(exp.Text))
	fmt.Printf("%s %s\n", labelStyle.Render("tier"), valueStyle.Render(string(exp.Tier)))
	fmt.Printf("%s %s\n\n", labelStyle.Render("category"), valueStyle.Render(string(exp.Category)))

	f := exp.Factors
	rows := []struct {
		name  string
		value float64
	}{
		{"recency", f.Recency},
		{"semantic", f.Semantic},
		{"conflict", f.Conflict},
		{"importance", f.Importance},
		{"personalization", f.Personalization},
		{"momentum", f.Momentum},
	}
	for _, r := range rows {
		fmt.Printf("%s %s\n", labelStyle.Render(r.name), factorStyle.Render(fmt.Sprintf("%.4f", r.value)))
	}
	fmt.Printf("%s %s\n\n", labelStyle.Render("total"), totalStyle.Render(fmt.Sprintf("%.4f", f.Total)))

	for _, n := range exp.Notes {
		fmt.Printf("  %s\n", noteStyle.Render("• "+n))
	}
	return nil
}
