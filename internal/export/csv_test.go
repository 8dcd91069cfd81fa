package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thsrbook/internal/models"
)

func offers() []models.TrainOffer {
	return []models.TrainOffer{
		{Date: "2025/10/20", Code: "0653", Departure: "15:11", Arrival: "16:00", Duration: "0:49",
			Discount: "學生88折", StudentDiscount: true, Selected: true},
		{Date: "2025/10/20", Code: "0657", Departure: "15:41", Arrival: "16:30", Duration: "0:49",
			Discount: "早鳥65折, 限量"},
	}
}

func TestAppendWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.csv")

	n, err := Append(path, offers())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = Append(path, offers()[:1])
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.True(t, strings.HasPrefix(text, "\ufeffdate,code,departure,arrival,estimated,student_discount,discount_text,selected\n"))
	assert.Equal(t, 1, strings.Count(text, "\ufeff"))
	assert.Equal(t, 1, strings.Count(text, "student_discount"))
	assert.Contains(t, text, "2025/10/20,0653,15:11,16:00,0:49,True,學生88折,True\n")
	assert.Contains(t, text, `"早鳥65折, 限量",False`)
}

func TestAppendNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	n, err := Append(path, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	_, err := Append(path, offers())
	require.NoError(t, err)

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, offers(), got)
}

func TestReadByHeaderName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraped.csv")
	content := "\ufeffcode,discount_text,date,departure,arrival,extra\n" +
		"0653, 學生88折 ,2025/10/20,15:11,16:00,x\n" +
		"0701,,2025/10/20,16:11,17:00\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	hits, err := ReadHits(path, "學生88折")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "0653", hits[0].Code)
	assert.Equal(t, "學生88折", hits[0].Discount)
	assert.Equal(t, "2025/10/20|0653|15:11|16:00|學生88折", hits[0].Key())
	assert.True(t, hits[0].IsTarget)
}

func TestReadMissingOrEmpty(t *testing.T) {
	dir := t.TempDir()
	rows, err := Read(filepath.Join(dir, "nope.csv"))
	require.NoError(t, err)
	assert.Empty(t, rows)

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	rows, err = Read(empty)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
