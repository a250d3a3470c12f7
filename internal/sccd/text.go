package sccd

import (
	"html"
	"regexp"
	"strings"

	nethtml "golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Words stripped from descriptions so the client or project name remains.
var descriptionNoise = []string{
	"-", "(", ")", "NEW SERVICE", "SIDIP", "SID IP", "NEW PROJECT",
	"(SIDIP)", "SID-IP", "NUEVO SERVICIO", "WIFI", "WI-FI", "WI FI",
	"MIGRATION", "MIGRACION", "DEAL ", "SOLUCION", "SOLUTION", "SDWAN",
	"SD-WAN", "ROUTER", "LAN ", "SWITCH", "ACCESS POINT", " AP ", "APS ",
	"FIREWALL", "CISCO", "JUNIPER", "FORTIGATE", "FORTI ", "MANAGED",
	"DIA ", "RETAIL ANALYTICS", "DATA WIFI", "DATAWIFI", "NEW ",
	"COLOMBIA", "HONDURAS", "GUATEMALA", "SALVADOR", "TRINIDAD", "JAMAICA",
	"REPUBLICA DOMINICANA", "BARBADOS", "CURAZAO", "PANAMA",
}

var (
	upper      = cases.Upper(language.Und)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// EraseKeywords upper-cases a work order description and removes service
// and country keywords. Hyphens become spaces.
func EraseKeywords(text string) string {
	out := upper.String(text)
	for _, p := range descriptionNoise {
		if p == "-" {
			out = strings.ReplaceAll(out, p, " ")
		} else {
			out = strings.ReplaceAll(out, p, "")
		}
		out = strings.TrimSpace(out)
	}
	return out
}

// CleanHTML flattens an SCCD rich-text field to plain text: one line per
// text node, entities decoded, non-breaking spaces replaced, trailing blanks
// trimmed and runs of empty lines collapsed.
func CleanHTML(raw string) string {
	if raw == "" {
		return ""
	}
	doc, err := nethtml.Parse(strings.NewReader(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}

	var parts []string
	var walk func(*nethtml.Node)
	walk = func(n *nethtml.Node) {
		switch n.Type {
		case nethtml.TextNode:
			parts = append(parts, n.Data)
		case nethtml.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	text := html.UnescapeString(strings.Join(parts, "\n"))
	text = strings.ReplaceAll(text, "\u00a0", " ")
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	text = blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(text)
}
