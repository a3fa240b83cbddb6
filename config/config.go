package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"shift-scheduler/internal/domain"
)

type Config struct {
	TelegramToken string
	ManagerToken  string

	DBPath   string
	HTTPAddr string

	RemoteBaseURL   string
	RemoteToken     string
	RemoteRateLimit float64

	Workers   int
	QueueSize int

	// ManagerChats may use manager commands and approve elevated options.
	ManagerChats map[int64]bool
	Location     *time.Location

	Rules domain.Rules
}

// LoadConfig reads .env (if present) and the process environment. When
// HTTP_ADDR is set the bot token becomes optional and the process can run
// as a pure REST store.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		TelegramToken:   os.Getenv("TELEGRAM_TOKEN"),
		ManagerToken:    os.Getenv("MANAGER_TOKEN"),
		DBPath:          envOr("DB_PATH", "scheduler.db"),
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		RemoteBaseURL:   os.Getenv("REMOTE_BASE_URL"),
		RemoteToken:     os.Getenv("REMOTE_TOKEN"),
		RemoteRateLimit: 10,
		Workers:         4,
		QueueSize:       32,
		Rules:           domain.DefaultRules(),
	}
	if cfg.TelegramToken == "" && cfg.HTTPAddr == "" {
		return nil, ErrNoToken{}
	}

	var err error
	if cfg.RemoteRateLimit, err = envFloat("REMOTE_RATE_LIMIT", cfg.RemoteRateLimit); err != nil {
		return nil, err
	}
	if cfg.Workers, err = envInt("WORKERS", cfg.Workers); err != nil {
		return nil, err
	}
	if cfg.QueueSize, err = envInt("QUEUE_SIZE", cfg.QueueSize); err != nil {
		return nil, err
	}

	if cfg.ManagerChats, err = parseChatIDs(os.Getenv("MANAGER_CHAT_IDS")); err != nil {
		return nil, err
	}
	cfg.Location = time.Local
	if tz := os.Getenv("TIMEZONE"); tz != "" {
		if cfg.Location, err = time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("TIMEZONE: %w", err)
		}
	}

	if path := os.Getenv("RULES_FILE"); path != "" {
		if cfg.Rules, err = LoadRules(path); err != nil {
			return nil, err
		}
	}
	if err := applyRuleOverrides(&cfg.Rules); err != nil {
		return nil, err
	}
	if err := cfg.Rules.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type ErrNoToken struct{}

func (e ErrNoToken) Error() string {
	return "TELEGRAM_TOKEN не задан в окружении"
}

// rulesFile mirrors domain.Rules in a hand-editable form. Empty fields keep
// the defaults.
type rulesFile struct {
	OvertimeThreshold string `yaml:"overtime_threshold"`
	BreakThreshold    string `yaml:"break_threshold"`
	MinRest           string `yaml:"min_rest"`
	SplitShiftGap     string `yaml:"split_shift_gap"`
	BreakLength       string `yaml:"break_length"`
	TrainingLength    string `yaml:"training_length"`

	OvertimeMultiplier string `yaml:"overtime_multiplier"`
	HolidayMultiplier  string `yaml:"holiday_multiplier"`

	Tax struct {
		Federal        string `yaml:"federal"`
		State          string `yaml:"state"`
		SocialSecurity string `yaml:"social_security"`
		Medicare       string `yaml:"medicare"`
	} `yaml:"tax"`

	Benefits struct {
		Contribution    string `yaml:"contribution"`
		MinRegularHours string `yaml:"min_regular_hours"`
	} `yaml:"benefits"`

	MaxRetries *int `yaml:"max_retries"`
}

// LoadRules reads a YAML rules file on top of domain.DefaultRules.
func LoadRules(path string) (domain.Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Rules{}, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(data)
}

func ParseRules(data []byte) (domain.Rules, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return domain.Rules{}, fmt.Errorf("parse rules file: %w", err)
	}

	r := domain.DefaultRules()
	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"overtime_threshold", f.OvertimeThreshold, &r.OvertimeThreshold},
		{"break_threshold", f.BreakThreshold, &r.BreakThreshold},
		{"min_rest", f.MinRest, &r.MinRest},
		{"split_shift_gap", f.SplitShiftGap, &r.SplitShiftGap},
		{"break_length", f.BreakLength, &r.BreakLength},
		{"training_length", f.TrainingLength, &r.TrainingLength},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return domain.Rules{}, fmt.Errorf("rules: %s: %w", d.name, err)
		}
		*d.dst = v
	}

	amounts := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"overtime_multiplier", f.OvertimeMultiplier, &r.OvertimeMultiplier},
		{"holiday_multiplier", f.HolidayMultiplier, &r.HolidayMultiplier},
		{"tax.federal", f.Tax.Federal, &r.FederalTaxRate},
		{"tax.state", f.Tax.State, &r.StateTaxRate},
		{"tax.social_security", f.Tax.SocialSecurity, &r.SocialSecurityRate},
		{"tax.medicare", f.Tax.Medicare, &r.MedicareRate},
		{"benefits.contribution", f.Benefits.Contribution, &r.BenefitsContribution},
		{"benefits.min_regular_hours", f.Benefits.MinRegularHours, &r.BenefitsMinRegularHours},
	}
	for _, a := range amounts {
		if a.raw == "" {
			continue
		}
		v, err := decimal.NewFromString(a.raw)
		if err != nil {
			return domain.Rules{}, fmt.Errorf("rules: %s: %w", a.name, err)
		}
		*a.dst = v
	}

	if f.MaxRetries != nil {
		r.MaxRetries = *f.MaxRetries
	}
	if err := r.Validate(); err != nil {
		return domain.Rules{}, err
	}
	return r, nil
}

// applyRuleOverrides lets the most commonly tuned thresholds be set as whole
// hours straight from the environment.
func applyRuleOverrides(r *domain.Rules) error {
	for key, dst := range map[string]*time.Duration{
		"OVERTIME_THRESHOLD_HOURS": &r.OvertimeThreshold,
		"BREAK_THRESHOLD_HOURS":    &r.BreakThreshold,
		"MIN_REST_HOURS":           &r.MinRest,
	} {
		raw := os.Getenv(key)
		if raw == "" {
			continue
		}
		h, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = time.Duration(h * float64(time.Hour))
	}
	return nil
}

// parseChatIDs reads a comma separated list of Telegram chat ids.
func parseChatIDs(raw string) (map[int64]bool, error) {
	out := make(map[int64]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("MANAGER_CHAT_IDS: %w", err)
		}
		out[id] = true
	}
	return out, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func envFloat(key string, def float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
