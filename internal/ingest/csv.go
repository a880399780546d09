// Package ingest loads historical price data from CSV exports into the
// ledger.
package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/agroprophet/agroprophet/internal/model"
	"github.com/agroprophet/agroprophet/internal/store"
)

// Expected CSV header names. Commodity maps to the ledger's crop column.
const (
	colDate   = "Date"
	colRegion = "Region"
	colCrop   = "Commodity"
	colPrice  = "Price per Unit (Silver Drachma/kg)"
)

// Result summarizes one CSV import run.
type Result struct {
	Inserted int
	Skipped  int // rows whose (date, region, crop) already existed
	Invalid  int // rows dropped for unparseable date or price
}

// ImportCSV reads historical prices from the CSV at path and inserts
// them as actual observations. Rows whose key already exists in the
// ledger are skipped, so re-running an import is safe.
func ImportCSV(ctx context.Context, st store.Store, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, eris.Wrap(err, "import csv: open")
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return Result{}, eris.Wrap(err, "import csv: read header")
	}

	idx := map[string]int{}
	for i, name := range header {
		idx[name] = i
	}
	for _, required := range []string{colDate, colRegion, colCrop, colPrice} {
		if _, ok := idx[required]; !ok {
			return Result{}, eris.Errorf("import csv: missing column %q", required)
		}
	}

	var res Result
	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, eris.Wrapf(err, "import csv: line %d", line+1)
		}
		line++

		date := record[idx[colDate]]
		region := record[idx[colRegion]]
		crop := record[idx[colCrop]]

		price, err := strconv.ParseFloat(record[idx[colPrice]], 64)
		if err != nil {
			zap.L().Warn("skipping row with unparseable price",
				zap.Int("line", line), zap.String("raw", record[idx[colPrice]]))
			res.Invalid++
			continue
		}
		if _, err := time.Parse(model.DateLayout, date); err != nil {
			zap.L().Warn("skipping row with unparseable date",
				zap.Int("line", line), zap.String("raw", date))
			res.Invalid++
			continue
		}

		existing, err := st.GetObservation(ctx, date, region, crop)
		if err != nil {
			return res, eris.Wrapf(err, "import csv: line %d lookup", line)
		}
		if existing != nil {
			res.Skipped++
			continue
		}

		obs := model.PriceObservation{
			Date: date, Region: region, Crop: crop, Price: price, Status: model.StatusActual,
		}
		if err := st.InsertActual(ctx, obs); err != nil {
			return res, eris.Wrapf(err, "import csv: line %d insert", line)
		}
		res.Inserted++
	}

	return res, nil
}
