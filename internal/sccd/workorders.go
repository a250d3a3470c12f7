package sccd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"git.home.luguber.info/inful/wodesk/internal/foundation/errors"
	"git.home.luguber.info/inful/wodesk/internal/logfields"
	"git.home.luguber.info/inful/wodesk/internal/workorder"
)

// Worklog title prefixes that feed dedicated columns.
const (
	prefixProjectInfo = "P00"
	prefixPM          = "N27"
)

type collection struct {
	Member       []member `json:"member"`
	ResponseInfo struct {
		NextPage *struct {
			Href string `json:"href"`
		} `json:"nextPage"`
	} `json:"responseInfo"`
}

type member struct {
	Href          string     `json:"href"`
	WOGroup       string     `json:"wogroup"`
	WONum         string     `json:"wonum"`
	Status        string     `json:"status"`
	Description   string     `json:"description"`
	DealCode      string     `json:"wolo2"`
	MultiAssetLoc []assetLoc `json:"multiassetlocci"`
	Worklog       []worklog  `json:"worklog"`
}

type assetLoc struct {
	CINum      string `json:"cinum,omitempty"`
	Location   string `json:"location,omitempty"`
	TargetDesc string `json:"targetdesc,omitempty"`
}

type worklog struct {
	Description     string `json:"description"`
	LogType         string `json:"logtype,omitempty"`
	LongDescription string `json:"description_longdescription"`
	CreateDate      string `json:"createdate,omitempty"`
}

// ListWorkOrders returns the owner's open work orders, following result pages.
func (c *Client) ListWorkOrders(ctx context.Context) ([]workorder.WorkOrder, error) {
	target := c.resourceURL(url.Values{
		"lean":          {"1"},
		"oslc.pageSize": {fmt.Sprint(pageSize)},
		"oslc.select":   {"*"},
		"oslc.where":    {c.listFilter()},
	})

	var out []workorder.WorkOrder
	for page := 0; target != ""; page++ {
		if page >= maxPages {
			slog.Warn("SCCD listing truncated", logfields.Count(len(out)))
			break
		}
		req, err := c.newRequest(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		var col collection
		if err := c.do(req, &col); err != nil {
			return nil, err
		}
		for i := range col.Member {
			out = append(out, c.normalize(&col.Member[i]))
		}
		target = ""
		if col.ResponseInfo.NextPage != nil {
			target = col.ResponseInfo.NextPage.Href
		}
	}

	slog.Info("Listed work orders", logfields.Count(len(out)), slog.String("owner", c.owner))
	return out, nil
}

func (c *Client) listFilter() string {
	quoted := make([]string, len(c.statuses))
	for i, s := range c.statuses {
		quoted[i] = `"` + s + `"`
	}
	return fmt.Sprintf(`owner="%s" and status IN [%s] and istask=false`, c.owner, strings.Join(quoted, ","))
}

func (c *Client) normalize(m *member) workorder.WorkOrder {
	w := workorder.WorkOrder{
		ID:          m.WOGroup,
		State:       c.LocalState(m.Status),
		Description: EraseKeywords(m.Description),
		DealCode:    m.DealCode,
		ProjectInfo: workorder.NoInformation,
		PM:          workorder.NoInformation,
		LastUpdate:  workorder.NoInformation,
	}
	if w.ID == "" {
		w.ID = m.WONum
	}

	for _, ci := range m.MultiAssetLoc {
		if ci.CINum == "" {
			continue
		}
		w.ConfigItems = append(w.ConfigItems, workorder.ConfigItem{
			ID:          ci.CINum,
			Location:    ci.Location,
			Description: CleanHTML(ci.TargetDesc),
		})
	}

	var latest time.Time
	for _, l := range m.Worklog {
		// Later entries win, as SCCD lists worklogs oldest first.
		if strings.HasPrefix(l.Description, prefixProjectInfo) {
			w.ProjectInfo = CleanHTML(l.LongDescription)
		}
		if strings.HasPrefix(l.Description, prefixPM) {
			w.PM = CleanHTML(l.LongDescription)
		}
		created, err := time.Parse(time.RFC3339, l.CreateDate)
		if err != nil {
			continue
		}
		if latest.IsZero() || created.After(latest) {
			latest = created
			w.LastUpdate = CleanHTML(l.LongDescription)
		}
	}
	return w
}

// memberHref resolves the update URL of a work order.
func (c *Client) memberHref(ctx context.Context, id string) (string, error) {
	target := c.resourceURL(url.Values{
		"lean":        {"1"},
		"oslc.select": {"*"},
		"oslc.where":  {fmt.Sprintf(`wonum="%s"`, id)},
	})
	req, err := c.newRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	var col collection
	if err := c.do(req, &col); err != nil {
		return "", err
	}
	if len(col.Member) == 0 || col.Member[0].Href == "" {
		return "", errors.NewError(errors.CategoryNotFound, "work order not found in SCCD").
			WithContext("id", id).Build()
	}

	href, err := url.Parse(col.Member[0].Href)
	if err != nil {
		return "", errors.RemoteError("SCCD returned an invalid member href").
			WithCause(err).WithContext("href", col.Member[0].Href).Build()
	}
	q := href.Query()
	q.Set("lean", "1")
	href.RawQuery = q.Encode()
	return href.String(), nil
}

// UpdateState sets the SCCD status of a work order.
func (c *Client) UpdateState(ctx context.Context, id string, state workorder.State) error {
	status := c.RemoteStatus(state)
	if err := c.merge(ctx, id, map[string]any{"status": status}); err != nil {
		return err
	}
	slog.Info("SCCD status changed", logfields.WorkOrderID(id), logfields.State(status))
	return nil
}

// AppendLog adds an UPDATE worklog entry to a work order.
func (c *Client) AppendLog(ctx context.Context, id, title, note string) error {
	payload := map[string]any{
		"worklog": []worklog{{Description: title, LogType: "UPDATE", LongDescription: note}},
	}
	if err := c.merge(ctx, id, payload); err != nil {
		return err
	}
	slog.Info("SCCD worklog added", logfields.WorkOrderID(id))
	return nil
}

// AddConfigItems attaches configuration items to a work order or task.
func (c *Client) AddConfigItems(ctx context.Context, id string, items []workorder.ConfigItem) error {
	if len(items) == 0 {
		return errors.ValidationError("no configuration items given").Build()
	}
	cis := make([]assetLoc, len(items))
	for i, it := range items {
		cis[i] = assetLoc{CINum: it.ID, TargetDesc: it.Description}
	}
	if err := c.merge(ctx, id, map[string]any{"multiassetlocci": cis}); err != nil {
		return err
	}
	slog.Info("SCCD configuration items added", logfields.WorkOrderID(id), logfields.Count(len(items)))
	return nil
}

func (c *Client) merge(ctx context.Context, id string, payload any) error {
	href, err := c.memberHref(ctx, id)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, href, payload)
	if err != nil {
		return err
	}
	if err := c.do(req, nil); err != nil {
		if ce, ok := errors.AsClassified(err); ok {
			return ce.WithContext("id", id)
		}
		return err
	}
	return nil
}
