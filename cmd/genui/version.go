package main

import (
	"fmt"
	"runtime"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// Version information, set at build time.
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			logo := lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true)
			label := lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, logo.Render("genui"))
			fmt.Fprintf(out, "%s %s\n", label.Render("Version:"), Version)
			fmt.Fprintf(out, "%s %s\n", label.Render("Commit:"), GitCommit)
			fmt.Fprintf(out, "%s %s\n", label.Render("Built:"), BuildDate)
			fmt.Fprintf(out, "%s %s\n", label.Render("Go:"), runtime.Version())
		},
	}
}
