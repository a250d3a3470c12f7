package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"git.home.luguber.info/inful/wodesk/internal/config"
	"git.home.luguber.info/inful/wodesk/internal/sccd"
	"git.home.luguber.info/inful/wodesk/internal/workorder"
)

const descriptionWidth = 60

// ListCmd implements the 'list' command.
type ListCmd struct {
	JSON  bool   `help:"Print JSON instead of a table"`
	State string `help:"Only show work orders in this local state" placeholder:"STATE"`
}

func (l *ListCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	client, err := sccd.New(cfg.Remote, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Remote.Timeout)
	defer cancel()
	records, err := client.ListWorkOrders(ctx)
	if err != nil {
		return err
	}
	return writeWorkOrders(g.out(), filterState(records, workorder.State(l.State)), l.JSON)
}

func filterState(records []workorder.WorkOrder, state workorder.State) []workorder.WorkOrder {
	if state == "" {
		return records
	}
	out := records[:0:0]
	for _, r := range records {
		if strings.EqualFold(string(r.State), string(state)) {
			out = append(out, r)
		}
	}
	return out
}

func writeWorkOrders(w io.Writer, records []workorder.WorkOrder, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WO\tSTATE\tDC\tCIS\tDESCRIPTION")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.ID, r.State, r.DealCode, len(r.ConfigItems), truncate(r.Description, descriptionWidth))
	}
	return tw.Flush()
}

func truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}
