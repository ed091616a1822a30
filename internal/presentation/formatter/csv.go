package formatter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/penwyp/go-tracker-monitor/internal/util"
)

type CSVFormatter struct{}

func NewCSVFormatter() *CSVFormatter {
	return &CSVFormatter{}
}

func (f *CSVFormatter) Format(w io.Writer, report Report) error {
	cw := csv.NewWriter(w)

	headers := []string{
		"Serial", "Name", "Color", "Points", "First", "Last",
		"Hidden", "Rendered", "Latest Lat", "Latest Lng", "Path",
	}
	if err := cw.Write(headers); err != nil {
		return err
	}

	tp := util.GetTimeProvider()
	for _, row := range report.Trackers {
		lat, lng := "", ""
		if row.Latest != nil {
			lat = fmt.Sprintf("%.6f", row.Latest.Lat)
			lng = fmt.Sprintf("%.6f", row.Latest.Lng)
		}
		record := []string{
			row.Serial,
			row.Name,
			row.Color,
			strconv.Itoa(row.Points),
			tp.FormatUnix(row.First, timeLayout),
			tp.FormatUnix(row.Last, timeLayout),
			strconv.FormatBool(row.Hidden),
			strconv.FormatBool(row.Rendered),
			lat,
			lng,
			row.Path,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
