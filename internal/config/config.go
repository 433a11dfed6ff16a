package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/sii-reconciler/internal/ledger"
	"github.com/garyjia/sii-reconciler/internal/report"
)

// EnvPrefix prefixes every environment override: SII_ANALYSIS_TOLERANCE ...
const EnvPrefix = "SII"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Columns  ColumnsConfig  `mapstructure:"columns"`
	Session  SessionConfig  `mapstructure:"session"`
	Export   ExportConfig   `mapstructure:"export"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host" validate:"required"`
	Port         int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	MaxUploadMB  int64         `mapstructure:"max_upload_mb" validate:"min=1,max=1024"`
}

// AnalysisConfig holds reconciliation and aggregation policies
type AnalysisConfig struct {
	Tolerance              float64 `mapstructure:"tolerance" validate:"gte=0"`
	Granularity            string  `mapstructure:"granularity" validate:"oneof=monthly quarterly annual"`
	View                   string  `mapstructure:"view" validate:"oneof=business_result cash_movement"`
	IncludeOtherTaxesInNet bool    `mapstructure:"include_other_taxes_in_net"`
}

// ColumnsConfig lists the header aliases of each logical field and the
// rules used to spot "other tax" columns. Names are normalized on use, so
// "Fecha Docto" and "fecha_docto" are equivalent.
type ColumnsConfig struct {
	TypeCode          []string `mapstructure:"type_code" validate:"min=1"`
	Folio             []string `mapstructure:"folio"`
	IssueDate         []string `mapstructure:"issue_date" validate:"min=1"`
	CounterpartRUT    []string `mapstructure:"counterpart_rut"`
	CounterpartName   []string `mapstructure:"counterpart_name"`
	Net               []string `mapstructure:"net"`
	Exempt            []string `mapstructure:"exempt"`
	VAT               []string `mapstructure:"vat"`
	RecoverableVAT    []string `mapstructure:"recoverable_vat"`
	NonRecoverableVAT []string `mapstructure:"non_recoverable_vat"`
	DeclaredTotal     []string `mapstructure:"declared_total" validate:"min=1"`

	OtherTaxPrefixes []string `mapstructure:"other_tax_prefixes"`
	OtherTaxNames    []string `mapstructure:"other_tax_names"`
	IgnorePrefixes   []string `mapstructure:"ignore_prefixes"`
}

// SessionConfig holds upload session limits
type SessionConfig struct {
	TTL                 time.Duration `mapstructure:"ttl" validate:"gt=0"`
	SweepInterval       time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`
	MaxFilesPerCategory int           `mapstructure:"max_files_per_category" validate:"min=1"`
}

// ExportConfig holds report export settings
type ExportConfig struct {
	OutputDir string            `mapstructure:"output_dir" validate:"required"`
	Sheets    report.SheetNames `mapstructure:"sheets"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	OutputPath string `mapstructure:"output_path" validate:"required"`
	Format     string `mapstructure:"format" validate:"oneof=json console"`
}

// Load loads configuration from defaults, an optional YAML file and the
// environment, in increasing precedence. A .env file in the working
// directory is read first when present.
func Load(configPath string) (*Config, error) {
	if err := LoadEnvFile(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadDefault returns the built-in configuration plus environment overrides
func LoadDefault() (*Config, error) {
	return Load("")
}

// LoadEnvFile exports the variables of a dotenv file that are not already
// set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.max_upload_mb", 20)

	// Analysis defaults
	v.SetDefault("analysis.tolerance", 1)
	v.SetDefault("analysis.granularity", "monthly")
	v.SetDefault("analysis.view", "business_result")
	v.SetDefault("analysis.include_other_taxes_in_net", false)

	// Column defaults follow the SII RCV exports
	aliases := ledger.DefaultColumnAliases()
	v.SetDefault("columns.type_code", aliases.TypeCode)
	v.SetDefault("columns.folio", aliases.Folio)
	v.SetDefault("columns.issue_date", aliases.IssueDate)
	v.SetDefault("columns.counterpart_rut", aliases.CounterpartRUT)
	v.SetDefault("columns.counterpart_name", aliases.CounterpartName)
	v.SetDefault("columns.net", aliases.Net)
	v.SetDefault("columns.exempt", aliases.Exempt)
	v.SetDefault("columns.vat", aliases.VAT)
	v.SetDefault("columns.recoverable_vat", aliases.RecoverableVAT)
	v.SetDefault("columns.non_recoverable_vat", aliases.NonRecoverableVAT)
	v.SetDefault("columns.declared_total", aliases.DeclaredTotal)

	classifier := ledger.DefaultClassifier()
	v.SetDefault("columns.other_tax_prefixes", classifier.Prefixes)
	v.SetDefault("columns.other_tax_names", classifier.Names)
	v.SetDefault("columns.ignore_prefixes", classifier.IgnorePrefixes)

	// Session defaults
	v.SetDefault("session.ttl", 2*time.Hour)
	v.SetDefault("session.sweep_interval", 5*time.Minute)
	v.SetDefault("session.max_files_per_category", 12)

	// Export defaults
	sheets := report.DefaultSheetNames()
	v.SetDefault("export.output_dir", "exports")
	v.SetDefault("export.sheets.summary", sheets.Summary)
	v.SetDefault("export.sheets.statistics", sheets.Statistics)
	v.SetDefault("export.sheets.files", sheets.Files)
	v.SetDefault("export.sheets.invalid", sheets.Invalid)
	v.SetDefault("export.sheets.undated", sheets.Undated)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the conventional unprefixed names some deployments use
func bindEnvVars(v *viper.Viper) error {
	for key, envs := range map[string][]string{
		"server.port":  {EnvPrefix + "_SERVER_PORT", "PORT"},
		"logger.level": {EnvPrefix + "_LOGGER_LEVEL", "LOG_LEVEL"},
	} {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
		return errors.New(strings.Join(msgs, "; "))
	}

	if c.Session.SweepInterval > c.Session.TTL {
		return fmt.Errorf("session.sweep_interval (%s) must not exceed session.ttl (%s)", c.Session.SweepInterval, c.Session.TTL)
	}

	return nil
}
