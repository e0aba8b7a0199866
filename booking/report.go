// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

package booking

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

const (
	centreSeparator = "\n=============================================================\n"
	nameUnderline   = "---------------------------\n"
	cellSeparator   = "| "
	currency        = "£"
	absentPrice     = "-"
	unknownSpaces   = "?"
)

// Display width of the report cells. The pound sign and most European
// text is one column wide whatever the user's locale is.
var width = &runewidth.Condition{EastAsianWidth: false, StrictEmojiNeutral: true}

// Merge unions the partial reports. When two partials carry the same
// centre the later one wins, the same as a map update.
func Merge(partials ...Report) Report {
	ret := Report{}

	for _, partial := range partials {
		for name, centre := range partial {
			if _, ok := ret[name]; ok {
				log.Printf("Merge - centre %q found in more than one report, keeping the last one", name)
			}

			ret[name] = centre
		}
	}

	return ret
}

// Entries returns the report entries sorted by distance, the unknown ones
// last. Names break ties.
func (r Report) Entries() []Entry {
	ret := make([]Entry, 0, len(r))
	for _, name := range slices.Sorted(maps.Keys(r)) {
		ret = append(ret, Entry{Name: name, CentreReport: r[name]})
	}

	slices.SortStableFunc(ret, func(a, b Entry) int {
		return compareDistance(a.DistanceKm, b.DistanceKm)
	})

	return ret
}

// formatKm writes distances the way they are rounded: 0.777, 12.5, 3.0.
func formatKm(d float64) string {
	s := strconv.FormatFloat(d, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}

	return s
}

func priceCell(s Slot) string {
	if s.Price == "" {
		return absentPrice
	}

	return currency + s.Price
}

func spacesCell(s Slot) string {
	if s.Spaces == UnknownSpaces {
		return unknownSpaces
	}

	return strconv.Itoa(s.Spaces)
}

// columnWidth is one more than the widest cell of the slot column, which
// is len(TimeRange)+1 for the usual time ranges.
func columnWidth(s Slot) int {
	return max(
		width.StringWidth(s.TimeRange),
		width.StringWidth(priceCell(s)),
		width.StringWidth(spacesCell(s)),
	) + 1
}

func writeRow(w *bufio.Writer, label string, slots []Slot, widths []int, cell func(Slot) string) {
	w.WriteString("\n       ")
	w.WriteString(label)

	for i, s := range slots {
		w.WriteString(width.FillRight(cell(s), widths[i]))
		w.WriteString(cellSeparator)
	}
}

func writeSlots(w *bufio.Writer, slots []Slot) {
	widths := make([]int, len(slots))
	for i, s := range slots {
		widths[i] = columnWidth(s)
	}

	writeRow(w, "Times:  ", slots, widths, func(s Slot) string { return s.TimeRange })
	writeRow(w, "Prices: ", slots, widths, priceCell)
	writeRow(w, "Spaces: ", slots, widths, spacesCell)
}

func writeEntry(w *bufio.Writer, e Entry) {
	w.WriteString(centreSeparator)
	w.WriteString("\n\n" + e.Name + ":\n")
	w.WriteString(nameUnderline)
	fmt.Fprintf(w, "Company: %s\n", e.Company)
	fmt.Fprintf(w, "Address: %s\n", e.Address)

	if e.DistanceKm == nil {
		w.WriteString("Distance: Not Found\n")
	} else {
		fmt.Fprintf(w, "Distance: %skm\n", formatKm(*e.DistanceKm))
	}

	for _, activity := range slices.Sorted(maps.Keys(e.Activities)) {
		w.WriteString("\n\n-->" + activity + ":")

		dates := e.Activities[activity]
		for _, date := range slices.Sorted(maps.Keys(dates)) {
			w.WriteString("\n   " + date + ":")
			writeSlots(w, dates[date])
		}
	}
}

// Render writes the text report of r, searched from origin for activity.
func Render(out io.Writer, r Report, origin, activity string) error {
	w := bufio.NewWriter(out)

	fmt.Fprintf(w, "Home Address: %s\n", origin)
	fmt.Fprintf(w, "Activity: %s\n", activity)

	for _, e := range r.Entries() {
		writeEntry(w, e)
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	return nil
}

// RenderString is Render into a string.
func RenderString(r Report, origin, activity string) string {
	sb := strings.Builder{}
	_ = Render(&sb, r, origin, activity)

	return sb.String()
}

// ReportFileName is the name of the report file of activity.
func ReportFileName(activity string) string {
	activity = strings.NewReplacer("/", "-", string(os.PathSeparator), "-").Replace(activity)

	return fmt.Sprintf("Available %s slots.txt", activity)
}

// WriteReportFile renders r into ReportFileName(activity) under dir and
// returns the path written.
func WriteReportFile(dir string, r Report, origin, activity string) (path string, err error) {
	path = filepath.Join(dir, ReportFileName(activity))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating report file: %w", err)
	}

	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing report file: %w", cerr)
		}
	}()

	if err := Render(f, r, origin, activity); err != nil {
		return "", err
	}

	return path, nil
}
