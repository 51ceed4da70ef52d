package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/born-ml/vggplan/vgg"
)

// PlanHandler builds the network for the selected engine and prints its plan.
func PlanHandler(cmd *cobra.Command, args []string) error {
	eng, err := newEngine(cmd, args)
	if err != nil {
		return err
	}
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	cfg.PlainOutput, _ = cmd.Flags().GetBool("plain-output")

	net, err := vgg.Build(eng, cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	renderPlan(out, net.Plan.Summary())
	fmt.Fprintf(out, "\nengine %s: %d nodes, %d reorders, output %s, %s\n",
		eng.Name(), net.Plan.Len(), net.Plan.Reorders(), net.Output.Desc(), humanBytes(net.Plan.Bytes()))
	return nil
}

func renderPlan(w io.Writer, rows []vgg.Row) {
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{strconv.Itoa(r.Index), r.Label, r.Kind, r.Op, r.Dst})
	}

	renderTable(w, []string{"#", "NODE", "KIND", "OP", "DST"}, data)
}

// renderTable prints rows as a borderless, left-aligned table.
func renderTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(rows)
	table.Render()
}

func humanBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
