package notify

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"thsrbook/internal/config"
	"thsrbook/internal/locale"
	"thsrbook/internal/models"
	"thsrbook/internal/scheduler"
)

type recordingSender struct {
	msgs []*gomail.Message
	err  error
}

func (s *recordingSender) DialAndSend(m ...*gomail.Message) error {
	s.msgs = append(s.msgs, m...)
	return s.err
}

type recordingNotifier struct {
	subjects []string
	bodies   []string
	err      error
}

func (n *recordingNotifier) Send(ctx context.Context, subject, body string) error {
	n.subjects = append(n.subjects, subject)
	n.bodies = append(n.bodies, body)
	return n.err
}

func TestEmailMessage(t *testing.T) {
	s := &recordingSender{}
	e := NewEmailWithSender(config.EmailConfig{
		Username:      "me@example.com",
		To:            []string{"a@example.com", "b@example.com"},
		SubjectPrefix: "[THSR] ",
	}, s)

	require.NoError(t, e.Send(context.Background(), "訂位成功", "<p>hello &amp; bye</p>"))
	require.Len(t, s.msgs, 1)

	m := s.msgs[0]
	assert.Equal(t, []string{"me@example.com"}, m.GetHeader("From"))
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"[THSR] 訂位成功"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "text/plain")
	assert.Contains(t, raw, "text/html")
}

func TestEmailSendError(t *testing.T) {
	e := NewEmailWithSender(config.EmailConfig{From: "x@example.com", To: []string{"y@example.com"}},
		&recordingSender{err: errors.New("535 auth failed")})
	err := e.Send(context.Background(), "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "535 auth failed")
}

type fakeBotAPI struct {
	mu       sync.Mutex
	texts    []string
	chatIDs  []string
	failures int
}

func (f *fakeBotAPI) handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"thsr","username":"thsr_bot"}}`))
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failures > 0 {
			f.failures--
			_, _ = w.Write([]byte(`{"ok":false,"error_code":500,"description":"Internal Server Error"}`))
			return
		}
		f.texts = append(f.texts, r.FormValue("text"))
		f.chatIDs = append(f.chatIDs, r.FormValue("chat_id"))
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
	default:
		http.NotFound(w, r)
	}
}

func newTelegram(t *testing.T, api *fakeBotAPI, retries int) *Telegram {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(api.handler))
	t.Cleanup(srv.Close)

	tg, err := NewTelegramWithEndpoint(config.TelegramConfig{BotToken: "123:abc", ChatID: "42", MaxRetries: retries},
		srv.URL+"/bot%s/%s", srv.Client(), time.Millisecond)
	require.NoError(t, err)
	return tg
}

func TestTelegramSendsPlainText(t *testing.T) {
	api := &fakeBotAPI{}
	tg := newTelegram(t, api, 3)

	require.NoError(t, tg.Send(context.Background(), "Booked", "<p>0653 &amp; 0655</p><ul><li>one</li></ul>"))
	require.Len(t, api.texts, 1)
	assert.Equal(t, "42", api.chatIDs[0])
	assert.Equal(t, "Booked\n\n0653 & 0655\n- one", api.texts[0])
}

func TestTelegramRetries(t *testing.T) {
	api := &fakeBotAPI{failures: 2}
	tg := newTelegram(t, api, 3)
	require.NoError(t, tg.Send(context.Background(), "s", "b"))
	assert.Len(t, api.texts, 1)

	api = &fakeBotAPI{failures: 5}
	tg = newTelegram(t, api, 2)
	err := tg.Send(context.Background(), "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 2 retries")
}

func TestTelegramInvalidChatID(t *testing.T) {
	api := &fakeBotAPI{}
	srv := httptest.NewServer(http.HandlerFunc(api.handler))
	defer srv.Close()

	_, err := NewTelegramWithEndpoint(config.TelegramConfig{BotToken: "t", ChatID: "@channel"},
		srv.URL+"/bot%s/%s", srv.Client(), time.Millisecond)
	assert.ErrorContains(t, err, "invalid chat ID")
}

func TestMultiJoinsErrors(t *testing.T) {
	ok := &recordingNotifier{}
	bad := &recordingNotifier{err: errors.New("smtp down")}
	err := Multi{bad, ok}.Send(context.Background(), "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
	assert.Len(t, ok.subjects, 1, "a failing channel must not block the others")
}

func TestNewWithNothingEnabled(t *testing.T) {
	n, err := New(config.NotifyConfig{})
	require.NoError(t, err)
	assert.IsType(t, Nop{}, n)
}

func TestPlainText(t *testing.T) {
	in := `<div class="ticket"><table><tr><th>車次</th><td>0653</td></tr>
<tr><th>出發</th><td>15:11</td></tr></table><script>var x=1;</script>
<p>訂位代號&nbsp;&nbsp;12345678</p></div>`
	assert.Equal(t, "車次 0653\n\n出發 15:11\n\n訂位代號 12345678", PlainText(in))
	assert.Equal(t, "a\nb", PlainText("a<br>b"))
	assert.Equal(t, "", PlainText("<p></p>"))
}

func testReporter(t *testing.T, n Notifier) *Reporter {
	t.Helper()
	loc, err := locale.Load("en_US")
	require.NoError(t, err)
	return NewReporter(n, loc, models.SearchCriteria{
		Origin: "台北", Destination: "台中", Date: "2025-10-20", Time: "15:00",
	})
}

func TestReporterBooked(t *testing.T) {
	n := &recordingNotifier{}
	r := testReporter(t, n)

	err := r.Booked(context.Background(), scheduler.Run{ID: "run-1", Rounds: 2},
		models.AttemptResult{Outcome: models.OutcomeBooked, Confirmation: `<div class="card">0653</div>`})
	require.NoError(t, err)

	require.Len(t, n.subjects, 1)
	assert.Equal(t, "Booked: 台北→台中 2025-10-20 15:00", n.subjects[0])
	assert.Contains(t, n.bodies[0], `<div class="card">0653</div>`)
	assert.Contains(t, n.bodies[0], "Run: run-1")
}

func TestReporterExhausted(t *testing.T) {
	n := &recordingNotifier{}
	r := testReporter(t, n)

	last := models.AttemptResult{
		Outcome: models.OutcomeNoMatch,
		Cause:   "2 trains, none with 學生88折",
		Offers:  []models.TrainOffer{{Code: "0653", Discount: "早鳥65折"}},
	}
	require.NoError(t, r.Exhausted(context.Background(), scheduler.Run{ID: "run-2", Rounds: 5}, scheduler.ReasonDeadline, last))

	body := n.bodies[0]
	assert.Equal(t, "Gave up: 台北→台中 2025-10-20 15:00", n.subjects[0])
	assert.Contains(t, body, "Stopped after 5 rounds, last outcome: no_match (2 trains, none with 學生88折).")
	assert.Contains(t, body, "Reason: deadline passed")
	assert.Contains(t, body, "<td>早鳥65折</td>")
}

func TestReporterHitsAndFatal(t *testing.T) {
	n := &recordingNotifier{}
	r := testReporter(t, n)

	hits := []models.TrainOffer{
		{Date: "2025/10/20", Code: "0653", Departure: "15:11", Arrival: "16:00", Duration: "0:49", Discount: "學生88折"},
		{Date: "2025/10/20", Code: "0657", Departure: "15:41", Arrival: "16:30", Duration: "0:49", Discount: "學生88折<b>"},
	}
	require.NoError(t, r.Hits(context.Background(), "學生88折", hits))
	assert.Equal(t, "2 train(s) with 學生88折", n.subjects[0])
	assert.Contains(t, n.bodies[0], "<td>0657</td>")
	assert.Contains(t, n.bodies[0], "學生88折&lt;b&gt;")

	require.NoError(t, r.Fatal(context.Background(), errors.New("browser <gone>"), []byte("goroutine 1")))
	assert.Equal(t, "Program aborted", n.subjects[1])
	assert.Contains(t, n.bodies[1], "browser &lt;gone&gt;")
	assert.Contains(t, n.bodies[1], "goroutine 1")
}
