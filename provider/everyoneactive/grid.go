// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

package everyoneactive

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/jcodagnone/leisureslots/booking"
	"github.com/jcodagnone/leisureslots/utils/htmlutils"
	"github.com/jcodagnone/leisureslots/utils/textutils"
)

var postBackRe = regexp.MustCompile(`__doPostBack\(\s*'([^']*)'\s*,\s*'([^']*)'\s*\)`)

// click returns the form values a browser adds when control is clicked:
// its own name and value for buttons, the event target and argument for
// __doPostBack links. Plain links return nil.
func click(control *html.Node) url.Values {
	if m := postBackRe.FindStringSubmatch(htmlutils.Attr(control, "href")); m != nil {
		return url.Values{"__EVENTTARGET": {m[1]}, "__EVENTARGUMENT": {m[2]}}
	}

	if m := postBackRe.FindStringSubmatch(htmlutils.Attr(control, "onclick")); m != nil {
		return url.Values{"__EVENTTARGET": {m[1]}, "__EVENTARGUMENT": {m[2]}}
	}

	if htmlutils.IsElement(control, "input") || htmlutils.IsElement(control, "button") {
		if name := htmlutils.Attr(control, "name"); name != "" {
			return url.Values{name: {htmlutils.Attr(control, "value")}}
		}
	}

	return nil
}

func isSubmit(n *html.Node) bool {
	return (htmlutils.IsElement(n, "input") || htmlutils.IsElement(n, "button")) &&
		strings.EqualFold(htmlutils.Attr(n, "type"), "submit")
}

// cells returns the th and td children of row.
func cells(row *html.Node) []*html.Node {
	var ret []*html.Node

	for c := row.FirstChild; c != nil; c = c.NextSibling {
		if htmlutils.IsElement(c, "td") || htmlutils.IsElement(c, "th") {
			ret = append(ret, c)
		}
	}

	return ret
}

// parseGrid reads the availability grid: dates across the first row, times
// down the first column, and a cell with class itemavailable for every
// bookable slot. The grid doesn't tell prices or how many courts are free.
func parseGrid(n *html.Node) (booking.Dates, bool) {
	table := htmlutils.Find(n, func(n *html.Node) bool {
		return htmlutils.IsElement(n, "table") && htmlutils.HasClass(n, "masterTable")
	})
	if table == nil {
		return nil, false
	}

	rows := htmlutils.FindAll(table, func(n *html.Node) bool { return htmlutils.IsElement(n, "tr") })
	if len(rows) == 0 {
		return booking.Dates{}, true
	}

	header := cells(rows[0])
	dates := make([]string, len(header))

	for i := 1; i < len(header); i++ {
		dates[i] = gridDate(textutils.SquashSpaces(htmlutils.Lines(header[i])))
	}

	ret := booking.Dates{}

	for _, row := range rows[1:] {
		cs := cells(row)
		if len(cs) == 0 {
			continue
		}

		start := textutils.SquashSpaces(htmlutils.Text(cs[0]))

		for i := 1; i < len(cs) && i < len(dates); i++ {
			if !htmlutils.HasClass(cs[i], "itemavailable") {
				continue
			}

			ret[dates[i]] = append(ret[dates[i]], booking.Slot{
				TimeRange: start,
				Spaces:    booking.UnknownSpaces,
			})
		}
	}

	return ret, true
}

var gridDateLayouts = []string{
	"02/01/2006",
	"Mon 02/01/2006",
	"Monday 02/01/2006",
	"2 Jan 2006",
	"Mon 2 Jan 2006",
	"Monday 2 January 2006",
	time.DateOnly,
}

// gridDate returns s as YYYY-MM-DD, or unchanged when it is not a date.
func gridDate(s string) string {
	for _, layout := range gridDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.DateOnly)
		}
	}

	return s
}
