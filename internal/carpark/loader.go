package carpark

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/parkscout/parkscout/internal/geo"
)

// Dataset CSV columns. The loader resolves columns by header name so column
// order is not significant.
const (
	columnID        = "carpark_id"
	columnName      = "development"
	columnAgency    = "agency"
	columnLatitude  = "latitude"
	columnLongitude = "longitude"
	columnLotType   = "lot_type"
	columnTotal     = "total_lots"
	columnAvailable = "available_lots"
)

// Load reads a carpark dataset from CSV. Each row carries one lot type for one
// carpark; rows sharing an identifier are merged into a single record whose
// position is that of the identifier's first occurrence. For repeated values
// the last occurrence wins. A malformed row never fails the load: rows with
// unusable coordinates become ineligible records and every recovery is
// reported as a RowWarning on the returned dataset.
func Load(r io.Reader, source string) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrSourceUnavailable, err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{columnID, columnLatitude, columnLongitude} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrSourceUnavailable, required)
		}
	}

	dataset := &Dataset{
		FetchedAt: time.Now(),
		Source:    source,
	}
	byID := make(map[string]int)

	for row := 2; ; row++ {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			dataset.Warnings = append(dataset.Warnings, RowWarning{
				Row:    row,
				Reason: fmt.Sprintf("unparseable row: %v", err),
			})
			continue
		}

		get := func(column string) string {
			i, ok := columns[column]
			if !ok || i >= len(fields) {
				return ""
			}
			return strings.TrimSpace(fields[i])
		}

		id := get(columnID)
		if id == "" {
			dataset.Warnings = append(dataset.Warnings, RowWarning{
				Row:    row,
				Reason: "missing carpark identifier",
			})
			continue
		}

		idx, seen := byID[id]
		if !seen {
			idx = len(dataset.Records)
			byID[id] = idx
			dataset.Records = append(dataset.Records, Record{
				ID:   id,
				Lots: make(map[LotType]Availability),
			})
		}
		record := &dataset.Records[idx]

		if name := get(columnName); name != "" {
			record.Name = name
		}
		if agency := get(columnAgency); agency != "" {
			record.Agency = agency
		}

		coord, coordErr := parseCoordinate(get(columnLatitude), get(columnLongitude))
		if coordErr != nil {
			record.HasCoordinate = false
			record.IneligibleReason = coordErr.Error()
			dataset.Warnings = append(dataset.Warnings, RowWarning{
				Row:    row,
				ID:     id,
				Reason: coordErr.Error(),
			})
		} else {
			record.Coordinate = coord
			record.HasCoordinate = true
			record.IneligibleReason = ""
		}

		if warning := mergeLotCounts(record, get(columnLotType), get(columnTotal), get(columnAvailable)); warning != "" {
			dataset.Warnings = append(dataset.Warnings, RowWarning{
				Row:    row,
				ID:     id,
				Reason: warning,
			})
		}
	}

	return dataset, nil
}

// LoadFile loads a carpark dataset from a CSV file on disk.
func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer f.Close()

	return Load(f, path)
}

func parseCoordinate(latField, lonField string) (geo.Coordinate, error) {
	lat, err := strconv.ParseFloat(latField, 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("invalid latitude %q", latField)
	}
	lon, err := strconv.ParseFloat(lonField, 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("invalid longitude %q", lonField)
	}

	coord := geo.Coordinate{Lat: lat, Lon: lon}
	if err := coord.Validate(); err != nil {
		return geo.Coordinate{}, err
	}
	return coord, nil
}

// mergeLotCounts parses a row's lot counts into the record, enforcing the
// available <= total invariant. The availability feed does not always publish
// capacity; an absent total is taken to equal the available count.
func mergeLotCounts(record *Record, lotField, totalField, availableField string) (warning string) {
	if lotField == "" && availableField == "" {
		return ""
	}

	lotType := LotType(lotField)
	if lotField == "" {
		lotType = LotTypeUnknown
	}

	available, err := strconv.Atoi(availableField)
	if err != nil || available < 0 {
		return fmt.Sprintf("invalid available lots %q for lot type %q", availableField, lotField)
	}

	total := available
	if totalField != "" {
		parsed, err := strconv.Atoi(totalField)
		switch {
		case err != nil || parsed < 0:
			warning = fmt.Sprintf("invalid total lots %q for lot type %q", totalField, lotField)
		case parsed < available:
			warning = fmt.Sprintf("total lots %d below available %d for lot type %q", parsed, available, lotField)
		default:
			total = parsed
		}
	}

	record.Lots[lotType] = Availability{Total: total, Available: available}
	return warning
}
