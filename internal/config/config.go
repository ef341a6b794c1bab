package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Navigation NavigationConfig `mapstructure:"navigation"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Cache      CacheConfig      `mapstructure:"cache"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// NavigationConfig is the per-menu configuration of the navigation tree.
type NavigationConfig struct {
	Category            int64    `mapstructure:"category"`      // root category of the tree
	OverridePid         int64    `mapstructure:"override_pid"`  // display page the menu links to
	MaxLevel            int      `mapstructure:"max_level"`     // 0 means unbounded
	EntryLevel          int      `mapstructure:"entry_level"`   // levels sliced off the front
	ExpandAll           int      `mapstructure:"expand_all"`    // >0 all, <0 up to -n levels
	ShowProducts        bool     `mapstructure:"show_products"` // append product leaves
	HideEmptyCategories bool     `mapstructure:"hide_empty_categories"`
	DisplayManuForCat   []string `mapstructure:"display_manu_for_cat"` // category ids or "all"
	NoAct               bool     `mapstructure:"no_act"`
	SortAllItems        string   `mapstructure:"sort_all_items"` // "" or "alphabetic"
	ErrorNodes          int      `mapstructure:"error_nodes"`
	MaxAncestry         int      `mapstructure:"max_ancestry"`
	AdditionalFields    []string `mapstructure:"additional_fields"`

	GroupOptions GroupOptionsConfig `mapstructure:"group_options"`
	States       StatesConfig       `mapstructure:"states"`
}

// GroupOptionsConfig selects a different root category per visitor group.
type GroupOptionsConfig struct {
	Enabled bool                `mapstructure:"enabled"`
	Options []GroupOptionConfig `mapstructure:"options"`
}

type GroupOptionConfig struct {
	Groups      []string `mapstructure:"groups"`
	CategoryUID int64    `mapstructure:"category_uid"`
}

// StatesConfig enables item states per menu level.
type StatesConfig struct {
	Default []string            `mapstructure:"default"`
	Levels  []LevelStatesConfig `mapstructure:"levels"`
}

type LevelStatesConfig struct {
	Depth  int      `mapstructure:"depth"`
	States []string `mapstructure:"states"`
}

// CatalogConfig selects and configures the backing store.
type CatalogConfig struct {
	Source string       `mapstructure:"source"` // postgres or remote
	Tables TablesConfig `mapstructure:"tables"`
	Remote RemoteConfig `mapstructure:"remote"`
}

// TablesConfig names the tables of the postgres catalog.
type TablesConfig struct {
	Categories        string `mapstructure:"categories"`
	Products          string `mapstructure:"products"`
	Manufacturers     string `mapstructure:"manufacturers"`
	CategoryRelations string `mapstructure:"category_relations"`
	ProductRelations  string `mapstructure:"product_relations"`
}

// RemoteConfig holds catalog API configuration
type RemoteConfig struct {
	BaseURL              string   `mapstructure:"base_url"`
	Mirrors              []string `mapstructure:"mirrors"`
	Timeout              int      `mapstructure:"timeout"`
	MaxRetries           int      `mapstructure:"max_retries"`
	MaxRequestsPerSecond int      `mapstructure:"max_requests_per_second"`
	Token                string   `mapstructure:"token"`
	CircuitBreakerDelay  int      `mapstructure:"circuit_breaker_delay"` // seconds, 0 disables
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// DSN returns the pgx connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

// RedisConfig holds Redis connection details
type RedisConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Password      string `mapstructure:"password"`
	Database      int    `mapstructure:"database"`
	Stream        string `mapstructure:"stream"`
	ConsumerGroup string `mapstructure:"consumer_group"`
	MinIdleTime   int    `mapstructure:"min_idle_time"`
	Workers       int    `mapstructure:"workers"`
	SelectionTTL  int    `mapstructure:"selection_ttl"` // seconds a session selection is remembered
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type CacheConfig struct {
	Store string `mapstructure:"store"` // memory or redis
	TTL   int    `mapstructure:"ttl"`   // seconds, 0 keeps entries until invalidated
	// BuildTimeout bounds one shared tree build, in seconds.
	BuildTimeout int `mapstructure:"build_timeout"`
}

// Load loads configuration from YAML file with environment variable overrides
func Load() (*Config, error) {
	return LoadFrom(".")
}

// LoadFrom loads config.yaml from dir.
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, fmt.Errorf("config.yaml file not found in %s", dir)
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("navigation.category", 0)
	v.SetDefault("navigation.override_pid", 0)
	v.SetDefault("navigation.max_level", 0)
	v.SetDefault("navigation.entry_level", 0)
	v.SetDefault("navigation.expand_all", 0)
	v.SetDefault("navigation.show_products", false)
	v.SetDefault("navigation.hide_empty_categories", false)
	v.SetDefault("navigation.display_manu_for_cat", []string{})
	v.SetDefault("navigation.no_act", false)
	v.SetDefault("navigation.sort_all_items", "")
	v.SetDefault("navigation.error_nodes", 5)
	v.SetDefault("navigation.max_ancestry", 64)
	v.SetDefault("navigation.additional_fields", []string{})
	v.SetDefault("navigation.group_options.enabled", false)
	v.SetDefault("navigation.states.default", []string{"CUR", "ACT", "IFSUB", "NO"})

	v.SetDefault("catalog.source", "postgres")
	v.SetDefault("catalog.tables.categories", "tx_commerce_categories")
	v.SetDefault("catalog.tables.products", "tx_commerce_products")
	v.SetDefault("catalog.tables.manufacturers", "tx_commerce_manufacturer")
	v.SetDefault("catalog.tables.category_relations", "tx_commerce_categories_parent_category_mm")
	v.SetDefault("catalog.tables.product_relations", "tx_commerce_products_categories_mm")
	v.SetDefault("catalog.remote.base_url", "http://localhost:8081/api/catalog")
	v.SetDefault("catalog.remote.timeout", 10)
	v.SetDefault("catalog.remote.max_retries", 3)
	v.SetDefault("catalog.remote.max_requests_per_second", 100)
	v.SetDefault("catalog.remote.circuit_breaker_delay", 30)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "commerce")
	v.SetDefault("database.user", "commerce_user")
	v.SetDefault("database.password", "commerce_pass")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.stream", "commerce:stream:catalog")
	v.SetDefault("redis.consumer_group", "navigation_invalidation")
	v.SetDefault("redis.min_idle_time", 120)
	v.SetDefault("redis.workers", 2)
	v.SetDefault("redis.selection_ttl", 86400)

	v.SetDefault("cache.store", "memory")
	v.SetDefault("cache.ttl", 0)
	v.SetDefault("cache.build_timeout", 30)
}
