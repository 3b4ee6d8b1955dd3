package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ProductURL string `yaml:"product_url"`

	BrowserProfilePath string `yaml:"browser_profile_path"`
	Headless           bool   `yaml:"headless"`
	KeepBrowserOpen    bool   `yaml:"keep_browser_open"`
	DebugMode          bool   `yaml:"debug_mode"`

	ListenAddr     string `yaml:"listen_addr"`
	DebugImagesDir string `yaml:"debug_images_dir"`
	SessionsDir    string `yaml:"sessions_dir"`

	// StatusUpdateDelayMs, when non-zero, pauses after every status update
	// so a slow poller observes each intermediate stage.
	StatusUpdateDelayMs int `yaml:"status_update_delay_ms"`

	// Terminal records older than RecordRetentionMinutes are evicted by the
	// registry janitor. Zero disables eviction.
	RecordRetentionMinutes int `yaml:"record_retention_minutes"`
	JanitorIntervalSeconds int `yaml:"janitor_interval_seconds"`

	PageLoadTimeout   int `yaml:"page_load_timeout"`
	ElementTimeout    int `yaml:"element_timeout"`
	NavigationTimeout int `yaml:"navigation_timeout"`
	SettlementTimeout int `yaml:"settlement_timeout"`
	ClassifyCheckMs   int `yaml:"classify_check_ms"`
	IframePrecheckMs  int `yaml:"iframe_precheck_ms"`
	PopupProbeMs      int `yaml:"popup_probe_ms"`

	MaxOTPAttempts   int    `yaml:"max_otp_attempts"`
	LoginOTPEndpoint string `yaml:"login_otp_endpoint"`

	Selectors SelectorConfig `yaml:"selectors"`
}

// SelectorConfig carries the site-specific locators. These are brittle by
// nature and live in config so a site tweak does not need a rebuild.
type SelectorConfig struct {
	PhoneInput      string `yaml:"phone_input"`
	OTPInput        string `yaml:"otp_input"`
	LoginSubmit     string `yaml:"login_submit"`
	LoginSubmitText string `yaml:"login_submit_text"`

	BuyNowText string `yaml:"buy_now_text"`

	ProductTitle string `yaml:"product_title"`

	AddressBlock     string `yaml:"address_block"`
	ViewAllAddresses string `yaml:"view_all_addresses"`
	AddressName      string `yaml:"address_name"`
	AddressNameAlt   string `yaml:"address_name_alt"`
	AddressText      string `yaml:"address_text"`
	DeliverHereText  string `yaml:"deliver_here_text"`

	SummaryContinueText string `yaml:"summary_continue_text"`
	TotalAmount         string `yaml:"total_amount"`
	ConsentAcceptText   string `yaml:"consent_accept_text"`

	CardOptionText  string `yaml:"card_option_text"`
	CardNumberInput string `yaml:"card_number_input"`
	ExpiryCombined  string `yaml:"expiry_combined"`
	MonthSelect     string `yaml:"month_select"`
	YearSelect      string `yaml:"year_select"`
	CVVInput        string `yaml:"cvv_input"`
	PaymentForm     string `yaml:"payment_form"`
	PayButtonText   string `yaml:"pay_button_text"`
	MaybeLaterText  string `yaml:"maybe_later_text"`

	BankOTPInput      string   `yaml:"bank_otp_input"`
	BankOTPInputExact string   `yaml:"bank_otp_input_exact"`
	BankConfirmText   string   `yaml:"bank_confirm_text"`
	BankIframes       []string `yaml:"bank_iframes"`
}

func DefaultConfig() *Config {
	return &Config{
		BrowserProfilePath: "",
		Headless:           false,
		KeepBrowserOpen:    false,
		DebugMode:          false,

		ListenAddr:     ":8000",
		DebugImagesDir: "debug_images",
		SessionsDir:    "sessions",

		StatusUpdateDelayMs:    0,
		RecordRetentionMinutes: 60,
		JanitorIntervalSeconds: 60,

		PageLoadTimeout:   45,
		ElementTimeout:    15,
		NavigationTimeout: 25,
		SettlementTimeout: 90,
		ClassifyCheckMs:   3000,
		IframePrecheckMs:  500,
		PopupProbeMs:      2000,

		MaxOTPAttempts:   3,
		LoginOTPEndpoint: "/api/1/user/login/otp",

		Selectors: SelectorConfig{
			PhoneInput:      "input[type='text'][autocomplete='off']",
			OTPInput:        "input[type='text'][maxlength='6']",
			LoginSubmit:     "button",
			LoginSubmitText: "/LOGIN|SIGNUP/",

			BuyNowText: "/buy now/i",

			ProductTitle: "span.B_NuCI, h1 span._35KyD6",

			AddressBlock:     `label:has(input[name="address"])`,
			ViewAllAddresses: "/view all \\d+ addresses/i",
			AddressName:      `.//span[normalize-space()="HOME" or normalize-space()="WORK"]/preceding-sibling::span[1]`,
			AddressNameAlt:   "p > span:first-child",
			AddressText:      "p + span",
			DeliverHereText:  "/deliver here/i",

			SummaryContinueText: "/^\\s*continue\\s*$/i",
			TotalAmount:         "/₹[\\d,]+/",
			ConsentAcceptText:   "/accept\\s*&\\s*continue/i",

			CardOptionText:  "/credit \\/ debit \\/ atm card/i",
			CardNumberInput: `input[name="cardNumber"], input[autocomplete="cc-number"]`,
			ExpiryCombined:  `input[autocomplete="cc-exp"]`,
			MonthSelect:     `select[name="month"]`,
			YearSelect:      `select[name="year"]`,
			CVVInput:        `input[name="cvv"], input#cvv-input`,
			PaymentForm:     "form#cards",
			PayButtonText:   "/pay\\s*₹?[\\d,]*/i",
			MaybeLaterText:  "/maybe later/i",

			BankOTPInput:      `input[type="password"], input[type="tel"], input[name*="otp" i], input[id*="otp" i]`,
			BankOTPInputExact: `input#otpValue[type="password"]`,
			BankConfirmText:   "/confirm|submit|pay/i",
			BankIframes: []string{
				`iframe[id*="card"]`,
				`iframe[name*="card"]`,
				`iframe[title*="3D Secure"]`,
				`iframe`,
			},
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.Save(path); err != nil {
			return nil, err
		}
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	if config.BrowserProfilePath != "" {
		if err := os.MkdirAll(config.BrowserProfilePath, 0755); err != nil {
			return nil, err
		}
	}

	return config, nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return os.WriteFile(path, data, 0644)
}

func (c *Config) StatusUpdateDelay() time.Duration {
	return time.Duration(c.StatusUpdateDelayMs) * time.Millisecond
}

func (c *Config) RecordRetention() time.Duration {
	return time.Duration(c.RecordRetentionMinutes) * time.Minute
}

func (c *Config) JanitorInterval() time.Duration {
	return time.Duration(c.JanitorIntervalSeconds) * time.Second
}

func (c *Config) PageLoad() time.Duration {
	return time.Duration(c.PageLoadTimeout) * time.Second
}

func (c *Config) ElementWait() time.Duration {
	return time.Duration(c.ElementTimeout) * time.Second
}

func (c *Config) NavigationWait() time.Duration {
	return time.Duration(c.NavigationTimeout) * time.Second
}

func (c *Config) SettlementWait() time.Duration {
	return time.Duration(c.SettlementTimeout) * time.Second
}

func (c *Config) ClassifyCheck() time.Duration {
	return time.Duration(c.ClassifyCheckMs) * time.Millisecond
}

func (c *Config) IframePrecheck() time.Duration {
	return time.Duration(c.IframePrecheckMs) * time.Millisecond
}

func (c *Config) PopupProbe() time.Duration {
	return time.Duration(c.PopupProbeMs) * time.Millisecond
}
