package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"tradecore/pkg/types"
)

// ColumnMapping describes where the bar fields live in a CSV row.
type ColumnMapping struct {
	TimestampCol int
	OpenCol      int
	HighCol      int
	LowCol       int
	CloseCol     int
	VolumeCol    int
	MinColumns   int
	DateFormat   string
}

// DefaultCSVFormat matches the common exchange export layout:
// timestamp,open,high,low,close,volume with RFC3339 timestamps.
var DefaultCSVFormat = ColumnMapping{
	TimestampCol: 0,
	OpenCol:      1,
	HighCol:      2,
	LowCol:       3,
	CloseCol:     4,
	VolumeCol:    5,
	MinColumns:   6,
	DateFormat:   time.RFC3339,
}

// CSVProvider loads bar history from CSV files.
type CSVProvider struct {
	format ColumnMapping
}

// NewCSVProvider creates a CSV provider with the default column layout.
func NewCSVProvider() *CSVProvider {
	return &CSVProvider{format: DefaultCSVFormat}
}

// NewCSVProviderWithFormat creates a CSV provider with a custom layout.
func NewCSVProviderWithFormat(format ColumnMapping) *CSVProvider {
	return &CSVProvider{format: format}
}

// Name implements Provider.
func (p *CSVProvider) Name() string { return "csv" }

// LoadBars implements Provider. Rows that fail to parse are skipped;
// the loaded series is sorted chronologically.
func (p *CSVProvider) LoadBars(source, symbol string) ([]types.Bar, error) {
	file, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open bar data: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	// Header row.
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	var bars []types.Bar
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV line %d: %w", line, err)
		}
		line++

		bar, ok := p.parseRow(record, symbol)
		if !ok {
			continue
		}
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})

	return bars, nil
}

func (p *CSVProvider) parseRow(record []string, symbol string) (types.Bar, bool) {
	f := p.format
	if len(record) < f.MinColumns {
		return types.Bar{}, false
	}

	timestamp, err := time.Parse(f.DateFormat, record[f.TimestampCol])
	if err != nil {
		return types.Bar{}, false
	}

	fields := [5]float64{}
	for i, col := range [5]int{f.OpenCol, f.HighCol, f.LowCol, f.CloseCol, f.VolumeCol} {
		v, err := strconv.ParseFloat(record[col], 64)
		if err != nil {
			return types.Bar{}, false
		}
		fields[i] = v
	}

	bar := types.Bar{
		Symbol:    symbol,
		Timestamp: timestamp,
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}
	if bar.Open <= 0 || bar.High <= 0 || bar.Low <= 0 || bar.Close <= 0 {
		return types.Bar{}, false
	}
	if bar.High < bar.Low || bar.High < bar.Open || bar.High < bar.Close ||
		bar.Low > bar.Open || bar.Low > bar.Close {
		return types.Bar{}, false
	}
	return bar, true
}

// ValidateBars implements Provider. It checks price sanity and
// chronological order.
func (p *CSVProvider) ValidateBars(bars []types.Bar) error {
	if len(bars) == 0 {
		return errors.New("no bars loaded")
	}

	for i, bar := range bars {
		if bar.Open <= 0 || bar.High <= 0 || bar.Low <= 0 || bar.Close <= 0 {
			return fmt.Errorf("bar %d: prices must be positive", i)
		}
		if bar.High < bar.Low {
			return fmt.Errorf("bar %d: high %.4f below low %.4f", i, bar.High, bar.Low)
		}
		if i > 0 && bar.Timestamp.Before(bars[i-1].Timestamp) {
			return fmt.Errorf("bar %d: out of chronological order", i)
		}
	}
	return nil
}
