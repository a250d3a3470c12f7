package commands

import (
	"context"
	"fmt"
	"strings"

	"git.home.luguber.info/inful/wodesk/internal/config"
	"git.home.luguber.info/inful/wodesk/internal/foundation/errors"
	"git.home.luguber.info/inful/wodesk/internal/sccd"
	"git.home.luguber.info/inful/wodesk/internal/workorder"
)

// AddCICmd implements the 'add-ci' command.
type AddCICmd struct {
	WorkOrderID string   `arg:"" name:"id" help:"Work order to attach the items to"`
	Items       []string `arg:"" name:"ci" help:"Configuration item as CINUM or CINUM=description"`
}

func (a *AddCICmd) Run(g *Global, root *CLI) error {
	items, err := parseConfigItems(a.Items)
	if err != nil {
		return err
	}
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
	if err := client.AddConfigItems(ctx, a.WorkOrderID, items); err != nil {
		return err
	}
	fmt.Fprintf(g.out(), "Added %d configuration item(s) to %s\n", len(items), a.WorkOrderID)
	return nil
}

func parseConfigItems(raw []string) ([]workorder.ConfigItem, error) {
	items := make([]workorder.ConfigItem, 0, len(raw))
	for _, r := range raw {
		id, desc, _ := strings.Cut(r, "=")
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, errors.ValidationError("configuration item number is required").
				WithContext("value", r).Build()
		}
		items = append(items, workorder.ConfigItem{ID: id, Description: strings.TrimSpace(desc)})
	}
	return items, nil
}
