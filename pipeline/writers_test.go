package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/organvm-iii-ergon/public-record-data-scrapper-sub000/models"
)

func sampleFilings() []models.UCCFiling {
	scraped := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return []models.UCCFiling{
		{
			FilingNumber: "2024-001",
			DebtorName:   "Acme Corp",
			SecuredParty: "First Bank",
			FilingDate:   "2024-01-15",
			Collateral:   "All assets",
			Status:       models.StatusActive,
			FilingType:   models.TypeUCC1,
			State:        "CA",
			ScrapedAt:    scraped,
		},
		{
			FilingNumber: "2024-002",
			DebtorName:   "Beta LLC",
			Status:       models.StatusTerminated,
			FilingType:   models.TypeUCC3,
			State:        "TX",
			ScrapedAt:    scraped,
		},
	}
}

func TestCSVWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "filings.csv")
	w, err := NewCSVWriter(path)
	require.NoError(t, err)

	require.NoError(t, w.Write(sampleFilings()))
	require.NoError(t, w.Validate())
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, csvHeader, records[0])
	require.Equal(t, "2024-001", records[1][0])
	require.Equal(t, "active", records[1][5])
	require.Equal(t, "UCC-1", records[1][6])
	require.Equal(t, "CA", records[1][7])

	_, err = time.Parse(time.RFC3339, records[1][8])
	require.NoError(t, err)
}

func TestJSONWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filings.jsonl")
	w, err := NewJSONWriter(path)
	require.NoError(t, err)

	require.NoError(t, w.Write(sampleFilings()))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var decoded models.UCCFiling
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &decoded))
	require.Equal(t, "2024-002", decoded.FilingNumber)
	require.Equal(t, models.StatusTerminated, decoded.Status)
	require.Equal(t, models.TypeUCC3, decoded.FilingType)
}

func TestJSONWriterValidateEmpty(t *testing.T) {
	w, err := NewJSONWriter(filepath.Join(t.TempDir(), "empty.jsonl"))
	require.NoError(t, err)
	defer w.Close()

	require.Error(t, w.Validate())
}

func TestDualWriterWritesBothOutputs(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "filings.csv")
	jsonPath := filepath.Join(dir, "filings.jsonl")

	w, err := NewDualWriter(csvPath, jsonPath)
	require.NoError(t, err)

	require.NoError(t, w.Write(sampleFilings()))
	require.NoError(t, w.Validate())
	require.NoError(t, w.Close())

	csvInfo, err := os.Stat(csvPath)
	require.NoError(t, err)
	require.Positive(t, csvInfo.Size())

	jsonInfo, err := os.Stat(jsonPath)
	require.NoError(t, err)
	require.Positive(t, jsonInfo.Size())
}
