package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-genui/pkg/widget"
)

func newToolsCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the widget tools offered to the model",
		Long: `List every tool the model may call, the widget it produces and its arguments.

Examples:
  genui tools           # table
  genui tools -o yaml   # schema export
  genui tools -o json   # including the JSON Schema parameters`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printTools(cmd.OutOrStdout(), widget.DefaultRegistry().DescribeAll(), output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table|yaml|json)")
	return cmd
}

func printTools(w io.Writer, tools []widget.ToolSchema, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tools)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(tools)
	case "table", "":
		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		tw.SetStyle(table.StyleRounded)
		tw.AppendHeader(table.Row{"Tool", "Widget", "Arguments", "Description"})
		for _, t := range tools {
			tw.AppendRow(table.Row{t.Name, t.Kind, fieldList(t.Fields), t.Description})
		}
		tw.Render()
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func fieldList(fields []widget.Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		p := f.Name + " " + f.Type
		if !f.Required {
			p += "?"
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, ", ")
}
