// Package export writes search results to CSV and reads them back for the
// watch loop. Files are UTF-8 with a byte-order mark so spreadsheet tools
// detect the encoding.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"thsrbook/internal/models"
)

const bom = "\ufeff"

// Columns is the header row, in file order.
var Columns = []string{"date", "code", "departure", "arrival", "estimated", "student_discount", "discount_text", "selected"}

// Append adds offers to path, creating it with a header if needed. It
// returns the number of rows written.
func Append(path string, offers []models.TrainOffer) (int, error) {
	if len(offers) == 0 {
		return 0, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create csv dir: %w", err)
		}
	}

	fresh := false
	if st, err := os.Stat(path); errors.Is(err, os.ErrNotExist) || (err == nil && st.Size() == 0) {
		fresh = true
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	if fresh {
		if _, err := io.WriteString(f, bom); err != nil {
			return 0, fmt.Errorf("write csv: %w", err)
		}
	}
	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(Columns); err != nil {
			return 0, fmt.Errorf("write csv: %w", err)
		}
	}
	for _, o := range offers {
		if err := w.Write(record(o)); err != nil {
			return 0, fmt.Errorf("write csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("write csv: %w", err)
	}
	return len(offers), nil
}

func record(o models.TrainOffer) []string {
	return []string{o.Date, o.Code, o.Departure, o.Arrival, o.Duration,
		formatBool(o.StudentDiscount), o.Discount, formatBool(o.Selected)}
}

// Booleans are written the way existing result files spell them.
func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// Read loads every row of path. Columns are matched by header name, so files
// with extra or reordered columns still load. A missing file yields no rows.
func Read(path string) ([]models.TrainOffer, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, bom))] = i
	}
	get := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []models.TrainOffer
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("read csv: %w", err)
		}
		out = append(out, models.TrainOffer{
			Date:            get(rec, "date"),
			Code:            get(rec, "code"),
			Departure:       get(rec, "departure"),
			Arrival:         get(rec, "arrival"),
			Duration:        get(rec, "estimated"),
			Discount:        get(rec, "discount_text"),
			StudentDiscount: strings.EqualFold(get(rec, "student_discount"), "true"),
			Selected:        strings.EqualFold(get(rec, "selected"), "true"),
		})
	}
	return out, nil
}

// ReadHits returns the rows whose discount text contains keyword.
func ReadHits(path, keyword string) ([]models.TrainOffer, error) {
	rows, err := Read(path)
	if err != nil {
		return nil, err
	}
	var hits []models.TrainOffer
	for _, o := range rows {
		if strings.Contains(o.Discount, keyword) {
			o.IsTarget = true
			hits = append(hits, o)
		}
	}
	return hits, nil
}
