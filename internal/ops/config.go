package ops

import (
	"strings"
	"time"

	"github.com/osdajiba/autotrade/internal/chaos"
	"github.com/osdajiba/autotrade/internal/execution"
	"github.com/osdajiba/autotrade/internal/journal"
	"github.com/osdajiba/autotrade/internal/order"
	"github.com/osdajiba/autotrade/internal/risk"
	"github.com/osdajiba/autotrade/internal/schema"
	"github.com/osdajiba/autotrade/pkg/conn"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/yanun0323/errors"
)

// EnvPrefix prefixes every environment override, e.g. AUTOTRADE_HTTP_ADDR.
const EnvPrefix = "AUTOTRADE"

// FileConfig mirrors the config file layout.
type FileConfig struct {
	Registry  RegistryConfig  `mapstructure:"registry"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Settings  SettingsConfig  `mapstructure:"settings"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Store     StoreConfig     `mapstructure:"store"`
	Redis     RedisConfig     `mapstructure:"redis"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Profiling ProfilingConfig `mapstructure:"profiling"`
	Chaos     ChaosConfig     `mapstructure:"chaos"`
}

// RegistryConfig defines venue and symbol mappings.
type RegistryConfig struct {
	Venues  []VenueConfig  `mapstructure:"venues"`
	Symbols []SymbolConfig `mapstructure:"symbols"`
}

type VenueConfig struct {
	Name string `mapstructure:"name"`
}

type SymbolConfig struct {
	Name  string `mapstructure:"name"`
	Venue string `mapstructure:"venue"`
	Scale int32  `mapstructure:"scale"`
}

type ExecutionConfig struct {
	QueueCapacity int           `mapstructure:"queue_capacity"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	NotifyBacklog int           `mapstructure:"notify_backlog"`
}

// SettingsConfig holds the default per-order costs as decimal strings.
type SettingsConfig struct {
	TransactionFee string `mapstructure:"transaction_fee"`
	Slippage       string `mapstructure:"slippage"`
}

type RiskConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	KillSwitch           bool          `mapstructure:"kill_switch"`
	MaxOrderQty          int64         `mapstructure:"max_order_qty"`
	MaxOrderNotional     string        `mapstructure:"max_order_notional"`
	OrderRateLimit       int           `mapstructure:"order_rate_limit"`
	OrderRateWindow      time.Duration `mapstructure:"order_rate_window"`
	MaxPriceDeviationBps int64         `mapstructure:"max_price_deviation_bps"`
}

type JournalConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	journal.Config `mapstructure:",squash"`
}

type StoreConfig struct {
	Enabled  bool                `mapstructure:"enabled"`
	Timeout  time.Duration       `mapstructure:"timeout"`
	Postgres conn.PostgresOption `mapstructure:"postgres"`
}

type RedisConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Channel          string        `mapstructure:"channel"`
	Timeout          time.Duration `mapstructure:"timeout"`
	conn.RedisOption `mapstructure:",squash"`
}

type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type ProfilingConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	ApplicationName string `mapstructure:"application_name"`
	ServerAddress   string `mapstructure:"server_address"`
}

type ChaosConfig struct {
	Seed      int64         `mapstructure:"seed"`
	FailRate  float64       `mapstructure:"fail_rate"`
	PanicRate float64       `mapstructure:"panic_rate"`
	MaxDelay  time.Duration `mapstructure:"max_delay"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	// Registry is nil when no symbols are configured.
	Registry    *schema.Registry
	Execution   execution.Config
	Settings    order.ExecSettings
	RiskEnabled bool
	Risk        risk.Config
	Journal     JournalConfig
	Store       StoreConfig
	Redis       RedisConfig
	HTTP        HTTPConfig
	Profiling   ProfilingConfig
	Chaos       chaos.Config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("execution.queue_capacity", 0)
	v.SetDefault("execution.poll_interval", time.Second)
	v.SetDefault("execution.notify_backlog", 4096)
	v.SetDefault("settings.transaction_fee", "0")
	v.SetDefault("settings.slippage", "0")
	v.SetDefault("risk.enabled", false)
	v.SetDefault("risk.kill_switch", false)
	v.SetDefault("risk.max_order_qty", 0)
	v.SetDefault("risk.max_order_notional", "0")
	v.SetDefault("risk.order_rate_limit", 0)
	v.SetDefault("risk.order_rate_window", time.Second)
	v.SetDefault("risk.max_price_deviation_bps", 0)
	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.dir", "data/journal")
	v.SetDefault("journal.file_prefix", "outcomes")
	v.SetDefault("journal.flush_interval", time.Second)
	v.SetDefault("store.enabled", false)
	v.SetDefault("store.timeout", 3*time.Second)
	v.SetDefault("store.postgres.host", "localhost")
	v.SetDefault("store.postgres.port", 5432)
	v.SetDefault("store.postgres.user", "")
	v.SetDefault("store.postgres.password", "")
	v.SetDefault("store.postgres.database", "autotrade")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "autotrade.outcomes")
	v.SetDefault("redis.timeout", 2*time.Second)
	v.SetDefault("http.enabled", true)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("profiling.enabled", false)
	v.SetDefault("profiling.application_name", "autotrade.execd")
	v.SetDefault("profiling.server_address", "http://localhost:4040")
	v.SetDefault("chaos.seed", 0)
	v.SetDefault("chaos.fail_rate", 0)
	v.SetDefault("chaos.panic_rate", 0)
	v.SetDefault("chaos.max_delay", 0)
}

// Load reads a JSON or YAML config file and resolves it. An empty path loads defaults
// and environment overrides only.
func Load(path string) (Loaded, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Loaded{}, errors.Wrapf(err, "read config %s", path)
		}
	}

	var cfg FileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return Loaded{}, errors.Wrap(err, "decode config")
	}
	return Resolve(cfg)
}

// Resolve validates a decoded config and builds runtime values.
func Resolve(cfg FileConfig) (Loaded, error) {
	registry, err := buildRegistry(cfg.Registry)
	if err != nil {
		return Loaded{}, err
	}
	settings, err := resolveSettings(cfg.Settings)
	if err != nil {
		return Loaded{}, err
	}
	riskCfg, err := resolveRisk(cfg.Risk)
	if err != nil {
		return Loaded{}, err
	}
	chaosCfg := chaos.Config{
		Seed:      cfg.Chaos.Seed,
		FailRate:  cfg.Chaos.FailRate,
		PanicRate: cfg.Chaos.PanicRate,
		MaxDelay:  cfg.Chaos.MaxDelay,
	}
	if err := chaosCfg.Validate(); err != nil {
		return Loaded{}, errors.Wrap(err, "invalid chaos config")
	}
	if cfg.Journal.Enabled && cfg.Journal.Dir == "" {
		return Loaded{}, errors.New("journal dir is empty")
	}
	if cfg.HTTP.Enabled && cfg.HTTP.Addr == "" {
		return Loaded{}, errors.New("http addr is empty")
	}
	if cfg.Execution.PollInterval < 0 {
		return Loaded{}, errors.New("execution poll_interval must be >= 0")
	}

	return Loaded{
		Registry: registry,
		Execution: execution.Config{
			QueueCapacity: cfg.Execution.QueueCapacity,
			PollInterval:  cfg.Execution.PollInterval,
			Settings:      settings,
		},
		Settings:    settings,
		RiskEnabled: cfg.Risk.Enabled,
		Risk:        riskCfg,
		Journal:     cfg.Journal,
		Store:       cfg.Store,
		Redis:       cfg.Redis,
		HTTP:        cfg.HTTP,
		Profiling:   cfg.Profiling,
		Chaos:       chaosCfg,
	}, nil
}

func buildRegistry(cfg RegistryConfig) (*schema.Registry, error) {
	if len(cfg.Symbols) == 0 {
		return nil, nil
	}
	reg := schema.NewRegistry()
	venues := make(map[string]schema.VenueID, len(cfg.Venues))
	for _, venue := range cfg.Venues {
		id, err := reg.AddVenue(venue.Name)
		if err != nil {
			return nil, errors.Wrap(err, "add venue")
		}
		venues[venue.Name] = id
	}
	for _, sym := range cfg.Symbols {
		venueID, ok := venues[sym.Venue]
		if !ok {
			return nil, errors.Errorf("venue not found: %s", sym.Venue)
		}
		if _, err := reg.AddSymbol(sym.Name, venueID, schema.Scale(sym.Scale)); err != nil {
			return nil, errors.Wrap(err, "add symbol")
		}
	}
	return reg, nil
}

func resolveSettings(cfg SettingsConfig) (order.ExecSettings, error) {
	fee, err := nonNegative("settings.transaction_fee", cfg.TransactionFee)
	if err != nil {
		return order.ExecSettings{}, err
	}
	slippage, err := nonNegative("settings.slippage", cfg.Slippage)
	if err != nil {
		return order.ExecSettings{}, err
	}
	return order.ExecSettings{TransactionFee: fee, Slippage: slippage}, nil
}

func resolveRisk(cfg RiskConfig) (risk.Config, error) {
	notional, err := nonNegative("risk.max_order_notional", cfg.MaxOrderNotional)
	if err != nil {
		return risk.Config{}, err
	}
	if cfg.MaxOrderQty < 0 || cfg.OrderRateLimit < 0 || cfg.MaxPriceDeviationBps < 0 {
		return risk.Config{}, errors.New("risk limits must be >= 0")
	}
	if cfg.OrderRateLimit > 0 && cfg.OrderRateWindow <= 0 {
		return risk.Config{}, errors.New("risk order_rate_window must be > 0 when order_rate_limit is set")
	}
	return risk.Config{
		Version:              1,
		KillSwitch:           cfg.KillSwitch,
		MaxOrderQty:          schema.Quantity(cfg.MaxOrderQty),
		MaxOrderNotional:     notional,
		OrderRateLimit:       cfg.OrderRateLimit,
		OrderRateWindow:      cfg.OrderRateWindow,
		MaxPriceDeviationBps: cfg.MaxPriceDeviationBps,
	}, nil
}

func nonNegative(key, s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse %s", key)
	}
	if d.IsNegative() {
		return decimal.Zero, errors.Errorf("%s must be >= 0", key)
	}
	return d, nil
}
