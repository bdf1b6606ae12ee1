/*
Package config loads server and routing configuration.

Environment variables (optionally via .env) drive the server knobs; the
approval routing tables live in a YAML file because section-to-reviewer
maps do not fit flat env vars. Routing is read once at startup: requests
capture their chain at submission, so editing the file never re-routes
an in-flight request.

Example routing file (routing.yaml):

  long_leave_threshold: 10
  senior_administrator: admin-1
  department_heads:
    science: head-sci
    languages: head-lang
  section_reviewers:
    sec-3a: reviewer-3a
    sec-3b: reviewer-3b
*/
package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/campus/leave-engine/approval"
	"github.com/campus/leave-engine/leave"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env  string
	Port int

	DBPath string

	Log    LogConfig
	CORS   CORSConfig
	Roster RosterConfig
	Ledger LedgerConfig

	Approval approval.Config
}

type LogConfig struct {
	Level  string
	Format string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RosterConfig struct {
	// PeriodsPerDay bounds the valid period index on schedule entries.
	PeriodsPerDay int
}

type LedgerConfig struct {
	// DefaultAllotment is the yearly day allotment used when an account
	// is provisioned without an explicit total.
	DefaultAllotment int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing .env is fine; a malformed one is not.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{
		Env:    v.GetString("ENV"),
		Port:   v.GetInt("PORT"),
		DBPath: v.GetString("DB_PATH"),
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS")),
		},
		Roster: RosterConfig{
			PeriodsPerDay: v.GetInt("PERIODS_PER_DAY"),
		},
		Ledger: LedgerConfig{
			DefaultAllotment: v.GetInt("DEFAULT_ALLOTMENT"),
		},
	}

	routing, err := loadRouting(v.GetString("ROUTING_FILE"))
	if err != nil {
		return nil, err
	}
	cfg.Approval = routing

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("DB_PATH", "leave.db")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173")
	v.SetDefault("PERIODS_PER_DAY", 8)
	v.SetDefault("DEFAULT_ALLOTMENT", 30)
	v.SetDefault("ROUTING_FILE", "routing.yaml")
}

// loadRouting reads the approval routing tables. A missing file yields
// empty tables: the router then surfaces a validation error on the first
// submission instead of silently defaulting a reviewer.
func loadRouting(path string) (approval.Config, error) {
	r := viper.New()
	r.SetConfigFile(path)
	r.SetConfigType("yaml")
	r.SetDefault("long_leave_threshold", 10)

	if err := r.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return approval.Config{LongLeaveThreshold: 10}, nil
		}
		return approval.Config{}, err
	}

	cfg := approval.Config{
		LongLeaveThreshold:  r.GetInt("long_leave_threshold"),
		SeniorAdministrator: leave.RequesterID(r.GetString("senior_administrator")),
		SectionReviewers:    make(map[leave.Section]leave.RequesterID),
		DepartmentHeads:     make(map[leave.Department]leave.RequesterID),
	}
	for section, reviewer := range r.GetStringMapString("section_reviewers") {
		cfg.SectionReviewers[leave.Section(section)] = leave.RequesterID(reviewer)
	}
	for dept, head := range r.GetStringMapString("department_heads") {
		cfg.DepartmentHeads[leave.Department(dept)] = leave.RequesterID(head)
	}
	return cfg, nil
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
