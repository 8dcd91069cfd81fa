package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"thsrbook/internal/models"
)

const DefaultBookingURL = "https://irs.thsrc.com.tw/IMINT/?utm_source=thsrc&utm_medium=btnlink&utm_term=booking"

const DefaultEdgeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/126.0.0.0 Safari/537.36 Edg/126.0.0.0"

type Config struct {
	SiteURL string `yaml:"site_url"`

	Search  SearchConfig  `yaml:"search"`
	Booking BookingConfig `yaml:"booking"`
	Watch   WatchConfig   `yaml:"watch"`
	Retry   RetryConfig   `yaml:"retry"`
	Timing  TimingConfig  `yaml:"timing"`
	Browser BrowserConfig `yaml:"browser"`
	OCR     OCRConfig     `yaml:"ocr"`
	Notify  NotifyConfig  `yaml:"notify"`
	State   StateConfig   `yaml:"state"`
	Export  ExportConfig  `yaml:"export"`
	Logging LoggingConfig `yaml:"logging"`

	Selectors SelectorConfig `yaml:"selectors"`

	// DebugDir receives a screenshot and the page HTML when a round fails.
	DebugDir  string `yaml:"debug_dir"`
	DebugMode bool   `yaml:"debug_mode"`
}

type SearchConfig struct {
	Origin         string `yaml:"origin"`
	Destination    string `yaml:"destination"`
	Date           string `yaml:"date"`
	Time           string `yaml:"time"`
	Adults         int    `yaml:"adults"`
	Students       int    `yaml:"students"`
	TargetDiscount string `yaml:"target_discount"`
}

type BookingConfig struct {
	IDNumber string `yaml:"id_number"`
	Phone    string `yaml:"phone"`
	Email    string `yaml:"email"`
	// IDType is the option value of the ID kind select ("0" = national ID).
	IDType string `yaml:"id_type"`
}

type WatchConfig struct {
	IntervalMinSec int `yaml:"interval_min_sec"`
	IntervalMaxSec int `yaml:"interval_max_sec"`
	// Until is the wall-clock deadline, empty for none. See ParseDeadline.
	Until string `yaml:"until"`
	// MaxRounds of 0 means unlimited.
	MaxRounds         int  `yaml:"max_rounds"`
	NotifyOnExhausted bool `yaml:"notify_on_exhausted"`
	// ScraperCommand, when set, makes the watch loop run this command each round
	// and read hits back from Export.CSVPath instead of searching in-process.
	ScraperCommand string `yaml:"scraper_command"`
	// SyncClock checks deadlines against the booking host's clock.
	SyncClock bool `yaml:"sync_clock"`
}

type RetryConfig struct {
	CaptchaMaxAttempts int      `yaml:"captcha_max_attempts"`
	SubmitMaxRetries   int      `yaml:"submit_max_retries"`
	RecoverableMarkers []string `yaml:"recoverable_markers"`
}

type TimingConfig struct {
	OverlayPollMs         int `yaml:"overlay_poll_ms"`
	ClassifyPollMs        int `yaml:"classify_poll_ms"`
	SettleMs              int `yaml:"settle_ms"`
	SubmitTimeoutMs       int `yaml:"submit_timeout_ms"`
	InitialOverlayMs      int `yaml:"initial_overlay_ms"`
	StepOverlayMs         int `yaml:"step_overlay_ms"`
	NavigateTimeoutMs     int `yaml:"navigate_timeout_ms"`
	ClickTimeoutMs        int `yaml:"click_timeout_ms"`
	CaptchaRefreshMs      int `yaml:"captcha_refresh_ms"`
	CaptchaRefreshWaitMs  int `yaml:"captcha_refresh_wait_ms"`
	CaptchaImageTimeoutMs int `yaml:"captcha_image_timeout_ms"`
	ConfirmTimeoutMs      int `yaml:"confirm_timeout_ms"`
	EvalTimeoutMs         int `yaml:"eval_timeout_ms"`
	HumanDelayMinMs       int `yaml:"human_delay_min_ms"`
	HumanDelayMaxMs       int `yaml:"human_delay_max_ms"`
}

type BrowserConfig struct {
	// Engine is "rod" or "playwright".
	Engine string `yaml:"engine"`
	// Channel is a playwright channel such as "msedge"; empty uses bundled Chromium.
	Channel        string   `yaml:"channel"`
	Bin            string   `yaml:"bin"`
	Headless       bool     `yaml:"headless"`
	Proxies        []string `yaml:"proxies"`
	ProxiesFile    string   `yaml:"proxies_file"`
	UserAgent      string   `yaml:"user_agent"`
	AcceptLanguage string   `yaml:"accept_language"`
	Locale         string   `yaml:"locale"`
	Timezone       string   `yaml:"timezone"`
	ViewportWidth  int      `yaml:"viewport_width"`
	ViewportHeight int      `yaml:"viewport_height"`
}

type OCRConfig struct {
	// Engine is "tesseract" or "http".
	Engine    string `yaml:"engine"`
	Language  string `yaml:"language"`
	Whitelist string `yaml:"whitelist"`
	// HTTPURL receives the base64 image as the request body and answers plain text.
	HTTPURL       string `yaml:"http_url"`
	HTTPTimeoutMs int    `yaml:"http_timeout_ms"`
}

type NotifyConfig struct {
	Language string         `yaml:"language"`
	Email    EmailConfig    `yaml:"email"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type EmailConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Host          string   `yaml:"host"`
	Port          int      `yaml:"port"`
	Username      string   `yaml:"username"`
	Password      string   `yaml:"password"`
	From          string   `yaml:"from"`
	To            []string `yaml:"to"`
	SubjectPrefix string   `yaml:"subject_prefix"`
}

type TelegramConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BotToken   string `yaml:"bot_token"`
	ChatID     string `yaml:"chat_id"`
	MaxRetries int    `yaml:"max_retries"`
}

type StateConfig struct {
	// Backend is "file", "sqlite" or "redis".
	Backend   string `yaml:"backend"`
	Path      string `yaml:"path"`
	RedisAddr string `yaml:"redis_addr"`
	RedisKey  string `yaml:"redis_key"`
}

type ExportConfig struct {
	CSVPath string `yaml:"csv_path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SelectorConfig struct {
	Overlays          []string `yaml:"overlays"`
	Step1Form         string   `yaml:"step1_form"`
	OriginSelect      string   `yaml:"origin_select"`
	DestinationSelect string   `yaml:"destination_select"`
	DateInput         string   `yaml:"date_input"`
	TimeSelect        string   `yaml:"time_select"`
	AdultSelect       string   `yaml:"adult_select"`
	StudentSelect     string   `yaml:"student_select"`
	CaptchaImage      string   `yaml:"captcha_image"`
	CaptchaRefresh    string   `yaml:"captcha_refresh"`
	CaptchaInput      string   `yaml:"captcha_input"`
	SubmitButton      string   `yaml:"submit_button"`
	ErrorBanner       string   `yaml:"error_banner"`
	ResultsPanel      string   `yaml:"results_panel"`
	ResultRow         string   `yaml:"result_row"`
	ResultRadio       string   `yaml:"result_radio"`
	ResultDiscount    string   `yaml:"result_discount"`
	ConfirmTrain      string   `yaml:"confirm_train"`
	TicketCard        string   `yaml:"ticket_card"`
	Step3Form         string   `yaml:"step3_form"`
	IDTypeSelect      string   `yaml:"id_type_select"`
	IDNumberInput     string   `yaml:"id_number_input"`
	PhoneInput        string   `yaml:"phone_input"`
	EmailInput        string   `yaml:"email_input"`
	MemberRadio       string   `yaml:"member_radio"`
	AgreeCheckbox     string   `yaml:"agree_checkbox"`
	FinalSubmit       string   `yaml:"final_submit"`
	Popups            []string `yaml:"popups"`
	CompletionPattern string   `yaml:"completion_pattern"`
	ConsentLabels     []string `yaml:"consent_labels"`
}

func DefaultConfig() *Config {
	dataDir := DataDir()

	return &Config{
		SiteURL: DefaultBookingURL,
		Search: SearchConfig{
			Origin:         "台北",
			Destination:    "台中",
			Date:           "",
			Time:           "15:00",
			Adults:         0,
			Students:       1,
			TargetDiscount: "學生88折",
		},
		Booking: BookingConfig{
			IDType: "0",
		},
		Watch: WatchConfig{
			IntervalMinSec:    180,
			IntervalMaxSec:    300,
			NotifyOnExhausted: true,
		},
		Retry: RetryConfig{
			CaptchaMaxAttempts: 6,
			SubmitMaxRetries:   6,
			RecoverableMarkers: []string{"驗證碼", "錯誤", "請重新輸入"},
		},
		Timing: TimingConfig{
			OverlayPollMs:         400,
			ClassifyPollMs:        250,
			SettleMs:              600,
			SubmitTimeoutMs:       18000,
			InitialOverlayMs:      15000,
			StepOverlayMs:         20000,
			NavigateTimeoutMs:     60000,
			ClickTimeoutMs:        1500,
			CaptchaRefreshMs:      800,
			CaptchaRefreshWaitMs:  450,
			CaptchaImageTimeoutMs: 6000,
			ConfirmTimeoutMs:      25000,
			EvalTimeoutMs:         5000,
			HumanDelayMinMs:       150,
			HumanDelayMaxMs:       450,
		},
		Browser: BrowserConfig{
			Engine:         "rod",
			Headless:       false,
			ProxiesFile:    "proxies.txt",
			UserAgent:      DefaultEdgeUserAgent,
			AcceptLanguage: "zh-TW,zh;q=0.9,en;q=0.8",
			Locale:         "zh-TW",
			Timezone:       "Asia/Taipei",
			ViewportWidth:  1280,
			ViewportHeight: 900,
		},
		OCR: OCRConfig{
			Engine:        "tesseract",
			Language:      "eng",
			Whitelist:     "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz",
			HTTPTimeoutMs: 10000,
		},
		Notify: NotifyConfig{
			Language: "zh_TW",
			Email: EmailConfig{
				Host:          "smtp.gmail.com",
				Port:          587,
				SubjectPrefix: "[THSR] ",
			},
			Telegram: TelegramConfig{
				MaxRetries: 3,
			},
		},
		State: StateConfig{
			Backend:  "file",
			Path:     filepath.Join(dataDir, "notified.txt"),
			RedisKey: "thsrbook:notified",
		},
		Export: ExportConfig{
			CSVPath: "thsrc_results.csv",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Selectors: SelectorConfig{
			Overlays:          []string{"#divMaskFrame", "#loadingMask", "#BusyBoxDiv"},
			Step1Form:         "#BookingS1Form",
			OriginSelect:      `select[name="selectStartStation"]`,
			DestinationSelect: `select[name="selectDestinationStation"]`,
			DateInput:         "#toTimeInputField",
			TimeSelect:        `select[name="toTimeTable"]`,
			AdultSelect:       `select[name="ticketPanel:rows:0:ticketAmount"]`,
			StudentSelect:     `select[name="ticketPanel:rows:4:ticketAmount"]`,
			CaptchaImage:      "#BookingS1Form_homeCaptcha_passCode",
			CaptchaRefresh:    "#BookingS1Form_homeCaptcha_reCodeLink",
			CaptchaInput:      "#securityCode",
			SubmitButton:      "#SubmitButton",
			ErrorBanner:       "#divErrMSG",
			ResultsPanel:      "#BookingS2Form_TrainQueryDataViewPanel",
			ResultRow:         "#BookingS2Form_TrainQueryDataViewPanel .result-listing label.result-item",
			ResultRadio:       "input.uk-radio",
			ResultDiscount:    ".discount span",
			ConfirmTrain:      `input.btn-next[value="確認車次"]`,
			TicketCard:        ".ticket-card",
			Step3Form:         "#BookingS3FormSP",
			IDTypeSelect:      "#idInputRadio",
			IDNumberInput:     "#idNumber",
			PhoneInput:        "#mobilePhone",
			EmailInput:        "#email",
			MemberRadio:       "#memberSystemRadio3",
			AgreeCheckbox:     `input[name="agree"]`,
			FinalSubmit:       "#isSubmit",
			Popups:            []string{"#btn-custom2", "#SubmitPassButton"},
			CompletionPattern: "完成訂位|訂位代號|已完成",
			ConsentLabels:     []string{"我同意", "同意", "我同意，繼續", "同意並繼續"},
		},
		DebugDir:  filepath.Join(dataDir, "debug"),
		DebugMode: false,
	}
}

// LoadConfig reads path over the defaults, writing the defaults there first when the
// file does not exist yet. Secrets are then overlaid from .env and the environment.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.Save(path); err != nil {
			return nil, err
		}
		applyEnv(config)
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	applyEnv(config)
	return config, nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Criteria returns the immutable search criteria for this run.
func (c *Config) Criteria() models.SearchCriteria {
	return models.SearchCriteria{
		Origin:         c.Search.Origin,
		Destination:    c.Search.Destination,
		Date:           c.Search.Date,
		Time:           c.Search.Time,
		Adults:         c.Search.Adults,
		Students:       c.Search.Students,
		TargetDiscount: c.Search.TargetDiscount,
	}
}

// Deadline parses Watch.Until; the zero time means no deadline.
func (c *Config) Deadline() (time.Time, error) {
	if c.Watch.Until == "" {
		return time.Time{}, nil
	}
	return ParseDeadline(c.Watch.Until, c.Location())
}

// Location is the site's timezone, falling back to UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Browser.Timezone)
	if err != nil || c.Browser.Timezone == "" {
		return time.UTC
	}
	return loc
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func (t TimingConfig) OverlayPoll() time.Duration     { return ms(t.OverlayPollMs) }
func (t TimingConfig) ClassifyPoll() time.Duration    { return ms(t.ClassifyPollMs) }
func (t TimingConfig) Settle() time.Duration          { return ms(t.SettleMs) }
func (t TimingConfig) SubmitTimeout() time.Duration   { return ms(t.SubmitTimeoutMs) }
func (t TimingConfig) InitialOverlay() time.Duration  { return ms(t.InitialOverlayMs) }
func (t TimingConfig) StepOverlay() time.Duration     { return ms(t.StepOverlayMs) }
func (t TimingConfig) NavigateTimeout() time.Duration { return ms(t.NavigateTimeoutMs) }
func (t TimingConfig) ClickTimeout() time.Duration    { return ms(t.ClickTimeoutMs) }
func (t TimingConfig) CaptchaRefresh() time.Duration  { return ms(t.CaptchaRefreshMs) }
func (t TimingConfig) CaptchaRefreshWait() time.Duration {
	return ms(t.CaptchaRefreshWaitMs)
}
func (t TimingConfig) CaptchaImageTimeout() time.Duration {
	return ms(t.CaptchaImageTimeoutMs)
}
func (t TimingConfig) ConfirmTimeout() time.Duration { return ms(t.ConfirmTimeoutMs) }
func (t TimingConfig) EvalTimeout() time.Duration    { return ms(t.EvalTimeoutMs) }

// Backoff returns the inclusive inter-round wait bounds.
func (w WatchConfig) Backoff() (time.Duration, time.Duration) {
	return time.Duration(w.IntervalMinSec) * time.Second, time.Duration(w.IntervalMaxSec) * time.Second
}

// DataDir is where state and debug artefacts live by default.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./thsrbook-data"
	}
	return filepath.Join(home, ".thsrbook")
}
