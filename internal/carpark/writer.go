package carpark

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// WriteCSV writes a dataset in the format Load reads. Each lot type gets its
// own row; lot types are sorted so output is deterministic. Ineligible
// records are written with empty coordinate fields and round-trip back to
// ineligible records.
func WriteCSV(w io.Writer, dataset *Dataset) error {
	writer := csv.NewWriter(w)

	header := []string{
		columnID, columnName, columnAgency,
		columnLatitude, columnLongitude,
		columnLotType, columnTotal, columnAvailable,
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, record := range dataset.Records {
		lat, lon := "", ""
		if record.HasCoordinate {
			lat = strconv.FormatFloat(record.Coordinate.Lat, 'f', -1, 64)
			lon = strconv.FormatFloat(record.Coordinate.Lon, 'f', -1, 64)
		}

		lotTypes := make([]string, 0, len(record.Lots))
		for lotType := range record.Lots {
			lotTypes = append(lotTypes, string(lotType))
		}
		sort.Strings(lotTypes)

		if len(lotTypes) == 0 {
			lotTypes = append(lotTypes, "")
		}

		for _, lotType := range lotTypes {
			row := []string{record.ID, record.Name, record.Agency, lat, lon, lotType, "", ""}
			if availability, ok := record.Lots[LotType(lotType)]; ok {
				row[6] = strconv.Itoa(availability.Total)
				row[7] = strconv.Itoa(availability.Available)
			}
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("writing row for %s: %w", record.ID, err)
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteFile writes the dataset to path atomically via a temp file rename, so
// concurrent readers never observe a partial dataset.
func WriteFile(path string, dataset *Dataset) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating dataset directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp dataset file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after successful rename

	if err := WriteCSV(tmp, dataset); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp dataset file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing dataset file: %w", err)
	}
	return nil
}
