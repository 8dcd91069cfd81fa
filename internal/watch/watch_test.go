package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thsrbook/internal/export"
	"thsrbook/internal/models"
	"thsrbook/internal/store"
)

type staticSource struct {
	offers []models.TrainOffer
	err    error
	calls  int
}

func (s *staticSource) Fetch(ctx context.Context, proxy string) ([]models.TrainOffer, error) {
	s.calls++
	return s.offers, s.err
}

type hitRecorder struct {
	batches [][]models.TrainOffer
	err     error
}

func (h *hitRecorder) Hits(ctx context.Context, keyword string, hits []models.TrainOffer) error {
	if h.err != nil {
		return h.err
	}
	h.batches = append(h.batches, hits)
	return nil
}

func row(code, discount string) models.TrainOffer {
	return models.TrainOffer{Date: "2025/10/20", Code: code, Departure: "15:11", Arrival: "16:00", Discount: discount}
}

func openStore(t *testing.T) *store.File {
	t.Helper()
	s, err := store.OpenFile(filepath.Join(t.TempDir(), "notified.txt"))
	require.NoError(t, err)
	return s
}

func TestWatcherNotifiesEachHitOnce(t *testing.T) {
	src := &staticSource{offers: []models.TrainOffer{
		row("0653", "學生88折"), row("0653", "學生88折"), row("0657", "早鳥65折"), row("0701", "學生88折 早鳥"),
	}}
	n := &hitRecorder{}
	st := openStore(t)
	w := New(src, st, n, "學生88折")

	res := w.Attempt(context.Background(), 1, "")
	assert.Equal(t, models.OutcomeNoMatch, res.Outcome)
	assert.False(t, res.Terminal())
	require.Len(t, n.batches, 1)
	assert.Len(t, n.batches[0], 2)
	assert.Equal(t, 2, st.Len())

	res = w.Attempt(context.Background(), 2, "")
	assert.Equal(t, models.OutcomeNoMatch, res.Outcome)
	assert.Contains(t, res.Cause, "none new")
	assert.Len(t, n.batches, 1)

	src.offers = append(src.offers, row("0711", "學生88折"))
	w.Attempt(context.Background(), 3, "")
	require.Len(t, n.batches, 2)
	assert.Equal(t, "0711", n.batches[1][0].Code)
}

func TestWatcherRetriesAfterFailedSend(t *testing.T) {
	src := &staticSource{offers: []models.TrainOffer{row("0653", "學生88折")}}
	n := &hitRecorder{err: errors.New("smtp down")}
	st := openStore(t)
	w := New(src, st, n, "學生88折")

	res := w.Attempt(context.Background(), 1, "")
	assert.Equal(t, models.OutcomeException, res.Outcome)
	assert.Zero(t, st.Len(), "unsent hits must not be recorded")

	n.err = nil
	w.Attempt(context.Background(), 2, "")
	assert.Len(t, n.batches, 1)
	assert.Equal(t, 1, st.Len())
}

func TestWatcherFetchError(t *testing.T) {
	src := &staticSource{err: errors.New("browser crashed")}
	w := New(src, openStore(t), &hitRecorder{}, "學生88折")

	res := w.Attempt(context.Background(), 1, "")
	assert.Equal(t, models.OutcomeException, res.Outcome)
	assert.Contains(t, res.Cause, "browser crashed")
}

func TestWatcherUsesRowsFromFailedFetch(t *testing.T) {
	src := &staticSource{offers: []models.TrainOffer{row("0653", "學生88折")}, err: errors.New("exit status 1")}
	n := &hitRecorder{}
	w := New(src, openStore(t), n, "學生88折")

	w.Attempt(context.Background(), 1, "")
	assert.Len(t, n.batches, 1)
}

func TestMatching(t *testing.T) {
	offers := []models.TrainOffer{row("1", "學生88折"), row("2", "早鳥")}
	assert.Len(t, Matching(offers, "學生88折"), 1)
	assert.Empty(t, Matching(offers, ""))
}

type fakeSearcher struct {
	offers []models.TrainOffer
	proxy  string
}

func (f *fakeSearcher) Search(ctx context.Context, proxy string) ([]models.TrainOffer, error) {
	f.proxy = proxy
	return f.offers, nil
}

func TestInProcessAppendsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	s := &fakeSearcher{offers: []models.TrainOffer{row("0653", "學生88折")}}

	got, err := InProcess{Searcher: s, CSVPath: path}.Fetch(context.Background(), "http://p:1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "http://p:1", s.proxy)

	rows, err := export.Read(path)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestCommandReadsCSVEvenOnFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")
	line := fmt.Sprintf(`printf 'date,code,departure,arrival,estimated,student_discount,discount_text,selected\n2025/10/20,0653,15:11,16:00,0:49,True,學生88折,False\n' > %s; exit 3`, path)

	offers, err := Command{Line: line, CSVPath: path}.Fetch(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scraper")
	require.Len(t, offers, 1)
	assert.Equal(t, "0653", offers[0].Code)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr)
}

func TestCommandPassesProxy(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")
	marker := filepath.Join(dir, "proxy.txt")
	line := fmt.Sprintf(`printf '%%s' "$THSR_PROXY" > %s`, marker)

	offers, err := Command{Line: line, CSVPath: path}.Fetch(context.Background(), "socks5://127.0.0.1:9050")
	require.NoError(t, err)
	assert.Empty(t, offers)

	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, "socks5://127.0.0.1:9050", string(data))
}
