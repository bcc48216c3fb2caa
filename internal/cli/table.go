package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/forPelevin/podclips/internal/runstatus"
	"github.com/forPelevin/podclips/internal/types"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range headers {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func clipsTable(clips []types.ManifestClip) string {
	rows := make([][]string, 0, len(clips))
	for _, c := range clips {
		rows = append(rows, []string{
			c.ID,
			clock(c.StartSec),
			clock(c.EndSec),
			string(c.Origin),
			strconv.FormatFloat(c.Confidence, 'f', 2, 64),
			truncate(c.Label, 48),
			c.File,
		})
	}
	return renderTable(
		[]string{"ID", "Start", "End", "Origin", "Conf", "Label", "File"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignRight},
	)
}

func segmentsTable(segs []types.CandidateSegment) string {
	rows := make([][]string, 0, len(segs))
	for _, s := range segs {
		rows = append(rows, []string{
			strconv.Itoa(s.ID),
			clock(s.StartSec),
			strconv.FormatFloat(s.DurationSec, 'f', 1, 64),
			string(s.Origin),
			strconv.FormatFloat(s.Confidence, 'f', 2, 64),
			truncate(s.Label, 60),
		})
	}
	return renderTable(
		[]string{"#", "Start", "Seconds", "Origin", "Conf", "Label"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignLeft, alignRight},
	)
}

func runsTable(runs []runstatus.Snapshot) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			string(r.State),
			r.Phase,
			strconv.Itoa(r.Progress) + "%",
			r.CreatedAt.Local().Format(time.DateTime),
			truncate(r.Input, 48),
		})
	}
	return renderTable(
		[]string{"ID", "Status", "Phase", "Progress", "Created", "Input"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
	)
}

// clock formats seconds as m:ss, or h:mm:ss past an hour.
func clock(sec float64) string {
	total := int(sec)
	h, m, s := total/3600, total%3600/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
