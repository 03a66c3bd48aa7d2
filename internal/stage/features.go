package stage

import (
	"fmt"
	"math"
	"slices"
	"strconv"

	"txshield/internal/dataset"
)

// Raw columns the feature engineering reads or removes.
const (
	colAge         = "Customer Age"
	colAmount      = "Transaction Amount"
	colAccountAge  = "Account Age Days"
	colHour        = "Transaction Hour"
	colQuantity    = "Quantity"
	minCustomerAge = 18
	newAccountDays = 30
)

// droppedColumns are identifiers and free text with no predictive use.
var droppedColumns = []string{
	"Transaction ID",
	"Customer ID",
	"Transaction Date",
	"Customer Location",
	"IP Address",
	"Shipping Address",
	"Billing Address",
}

// categoricalColumns are one-hot encoded with the first level dropped.
var categoricalColumns = []string{"Device Used", "Product Category", "Payment Method"}

// Encoding is the set of category levels learned from the training table.
// Level zero of each column is the dropped reference level.
type Encoding struct {
	Levels map[string][]string `json:"levels"`
}

// LearnEncoding collects the sorted levels of each categorical column.
func LearnEncoding(train *dataset.Frame) (*Encoding, error) {
	enc := &Encoding{Levels: make(map[string][]string, len(categoricalColumns))}
	for _, c := range categoricalColumns {
		cells, err := train.Column(c)
		if err != nil {
			return nil, err
		}
		levels := slices.Clone(cells)
		slices.Sort(levels)
		enc.Levels[c] = slices.Compact(levels)
	}
	return enc, nil
}

// Engineer derives the model features from a raw table. Rows for customers
// under 18 are removed. Levels unseen in training encode as all zeros.
func Engineer(f *dataset.Frame, enc *Encoding) (*dataset.Frame, error) {
	for _, c := range []string{colAge, colAmount, colAccountAge, colHour, colQuantity} {
		if !f.Has(c) {
			return nil, fmt.Errorf("%q: %w", c, dataset.ErrNoColumn)
		}
	}
	out := f.Drop(droppedColumns...)

	age, amount, acct, hour, qty := out.Index(colAge), out.Index(colAmount), out.Index(colAccountAge), out.Index(colHour), out.Index(colQuantity)
	var parseErr error
	num := func(row []string, i int) float64 {
		v, err := dataset.ParseFloat(row[i])
		if err != nil && parseErr == nil {
			parseErr = fmt.Errorf("column %q: %w", out.Columns[i], err)
		}
		return v
	}

	out = out.Filter(func(row []string) bool { return num(row, age) >= minCustomerAge })
	out = out.WithColumn("Log_Transaction_Amount", func(row []string) string {
		return formatFloat(math.Log1p(num(row, amount)))
	})
	out = out.WithColumn("New_Account", func(row []string) string {
		return flag(num(row, acct) <= newAccountDays)
	})
	out = out.WithColumn("Early_Txn", func(row []string) string {
		h := num(row, hour)
		return flag(h >= 0 && h <= 5)
	})
	out = out.WithColumn("Age_Amount_Risk", func(row []string) string {
		return formatFloat(num(row, age) * math.Log1p(num(row, amount)))
	})
	for _, row := range out.Rows {
		row[qty] = strconv.Itoa(int(num(row, qty)))
	}
	if parseErr != nil {
		return nil, parseErr
	}

	for _, c := range categoricalColumns {
		ci := out.Index(c)
		if ci < 0 {
			return nil, fmt.Errorf("%q: %w", c, dataset.ErrNoColumn)
		}
		levels := enc.Levels[c]
		for _, level := range levels[min(1, len(levels)):] {
			out = out.WithColumn(c+"_"+level, func(row []string) string {
				return flag(row[ci] == level)
			})
		}
		out = out.Drop(c)
	}
	return out, nil
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
