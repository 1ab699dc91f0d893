// Package report renders RSI results as a text table, CSV or JSON.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/amirphl/rsicalc/internal/calculator"
	"github.com/amirphl/rsicalc/internal/indicator"
	"github.com/amirphl/rsicalc/internal/tfutils"
)

const (
	FormatTable = "table"
	FormatCSV   = "csv"
	FormatJSON  = "json"
)

// Writer renders results in one format. With Series set every RSI point is
// written, otherwise only the latest one per symbol.
type Writer struct {
	out    io.Writer
	format string
	series bool
}

func NewWriter(out io.Writer, format string, series bool) (*Writer, error) {
	switch format {
	case FormatTable, FormatCSV, FormatJSON:
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
	return &Writer{out: out, format: format, series: series}, nil
}

// row is one rendered line of output.
type row struct {
	Symbol    string         `json:"symbol"`
	Timeframe string         `json:"timeframe"`
	Date      string         `json:"date"`
	Close     float64        `json:"close"`
	AvgGain   *float64       `json:"avg_gain,omitempty"`
	AvgLoss   *float64       `json:"avg_loss,omitempty"`
	RSI       float64        `json:"rsi"`
	Zone      indicator.Zone `json:"zone"`
}

func (w *Writer) Write(results []calculator.Result) error {
	rows := w.rows(results)
	switch w.format {
	case FormatCSV:
		return w.writeCSV(rows)
	case FormatJSON:
		return w.writeJSON(rows)
	default:
		return w.writeTable(rows)
	}
}

func (w *Writer) rows(results []calculator.Result) []row {
	var rows []row
	for _, res := range results {
		points := []indicator.Point{res.Latest}
		if w.series {
			points = res.Points
		}
		for _, p := range points {
			r := row{
				Symbol:    res.Symbol,
				Timeframe: res.Timeframe,
				Date:      formatDate(p.Timestamp, res.Timeframe),
				Close:     p.Close,
				RSI:       round(p.RSI, 2),
				Zone:      res.Thresholds.Classify(p.RSI),
			}
			if w.series {
				gain, loss := round(p.AvgGain, 4), round(p.AvgLoss, 4)
				r.AvgGain, r.AvgLoss = &gain, &loss
			}
			rows = append(rows, r)
		}
	}
	return rows
}

func (w *Writer) header() []string {
	if w.series {
		return []string{"symbol", "date", "close", "avg_gain", "avg_loss", "rsi", "zone"}
	}
	return []string{"symbol", "date", "close", "rsi", "zone"}
}

func (w *Writer) fields(r row) []string {
	f := []string{r.Symbol, r.Date, strconv.FormatFloat(r.Close, 'f', -1, 64)}
	if w.series {
		f = append(f, strconv.FormatFloat(*r.AvgGain, 'f', 4, 64), strconv.FormatFloat(*r.AvgLoss, 'f', 4, 64))
	}
	return append(f, strconv.FormatFloat(r.RSI, 'f', 2, 64), string(r.Zone))
}

func (w *Writer) writeTable(rows []row) error {
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	header := w.header()
	for i := range header {
		header[i] = strings.ToUpper(strings.ReplaceAll(header[i], "_", " "))
	}
	writeTabbed(tw, header)
	for _, r := range rows {
		writeTabbed(tw, w.fields(r))
	}
	return tw.Flush()
}

func writeTabbed(tw io.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, f)
	}
	fmt.Fprintln(tw)
}

func (w *Writer) writeCSV(rows []row) error {
	cw := csv.NewWriter(w.out)
	if err := cw.Write(w.header()); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(w.fields(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (w *Writer) writeJSON(rows []row) error {
	if rows == nil {
		rows = []row{}
	}
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func formatDate(t time.Time, timeframe string) string {
	if tfutils.IsIntraday(timeframe) {
		return t.UTC().Format("2006-01-02 15:04")
	}
	return t.UTC().Format("2006-01-02")
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
