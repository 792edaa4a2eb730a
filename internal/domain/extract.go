package domain

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selectors for the upstream status page markup. See the package documentation.
const (
	nameSelector     = ".garage .garage__name"
	statusSelector   = ".garage__text"
	fullnessSelector = ".garage__fullness"

	fullMarker = "full"
)

// Extractor turns status page markup into a Snapshot for the garages in its catalog.
// It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	catalog *Catalog
}

// NewExtractor creates an Extractor bound to a catalog.
func NewExtractor(catalog *Catalog) *Extractor {
	return &Extractor{catalog: catalog}
}

// Extract parses the markup and returns one Occupancy per recognized garage.
// Garage names not in the catalog are skipped. Any parse failure aborts the
// whole extraction with an error wrapping ErrParse; no partial snapshot is
// returned.
func (e *Extractor) Extract(r io.Reader) (Snapshot, error) {
	if e.catalog.Len() == 0 {
		return nil, fmt.Errorf("%w: empty catalog", ErrParse)
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	snapshot := make(Snapshot, e.catalog.Len())
	doc.Find(nameSelector).Each(func(_ int, name *goquery.Selection) {
		garage := strings.TrimSpace(name.Text())
		total, ok := e.catalog.Capacity(garage)
		if !ok {
			return
		}
		snapshot[garage] = Occupancy{
			Total: total,
			Open:  openSpots(total, name.NextFiltered(statusSelector)),
		}
	})

	return snapshot, nil
}

// openSpots resolves the status paragraph following a garage name into an
// open-spot count. It returns nil when the paragraph is missing or carries no
// usable signal.
func openSpots(total int, status *goquery.Selection) *int {
	if status.Length() == 0 {
		return nil
	}

	text := strings.ToLower(strings.TrimSpace(status.Text()))
	if strings.Contains(text, fullMarker) {
		return intPtr(0)
	}

	fullness := status.Find(fullnessSelector)
	if fullness.Length() == 0 {
		return nil
	}
	percent, err := parsePercent(fullness.First().Text())
	if err != nil {
		return nil
	}
	return intPtr(OpenFromPercent(total, percent))
}

// parsePercent parses an integer percentage such as "82 %", "82%" or " 82 ".
func parsePercent(s string) (int, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty percentage")
	}
	return strconv.Atoi(s)
}

// OpenFromPercent derives open spots from a fill percentage:
// round(total * (100 - percent) / 100), rounding half up. percent is clamped to
// [0, 100] first, so the result always lies in [0, total].
func OpenFromPercent(total, percent int) int {
	percent = clamp(percent, 0, 100)
	open := int(math.Round(float64(total*(100-percent)) / 100))
	return clamp(open, 0, total)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
