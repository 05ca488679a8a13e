package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configFileEnvName = "DARKSTORE_CONFIG_FILE"
	envPrefix         = "DARKSTORE"
)

const (
	DriverFile  = "file"
	DriverSQL   = "sql"
	DriverRedis = "redis"
)

// TLS holds PEM file paths. An empty CAFile disables TLS.
type TLS struct {
	CAFile   string `mapstructure:"ca_file"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

func (t TLS) Enabled() bool {
	return t.CAFile != ""
}

type redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
	TLS      TLS    `mapstructure:"tls"`
}

type storage struct {
	Driver       string        `mapstructure:"driver"`
	Dir          string        `mapstructure:"dir"`
	SQLDB        string        `mapstructure:"sql_db"`
	Redis        redis         `mapstructure:"redis"`
	Codec        string        `mapstructure:"codec"`
	CartKey      string        `mapstructure:"cart_key"`
	ProductsKey  string        `mapstructure:"products_key"`
	Async        bool          `mapstructure:"async"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type topics struct {
	CartEvents string `mapstructure:"cart_events"`
	Products   string `mapstructure:"products"`
}

type consumers struct {
	ProductsGroup string `mapstructure:"products_group"`
}

type broker struct {
	SeedBrokers        []string  `mapstructure:"seed_brokers"`
	SchemaRegistryURLs []string  `mapstructure:"schema_registry_urls"`
	Topics             topics    `mapstructure:"topics"`
	Consumers          consumers `mapstructure:"consumers"`
	TLS                TLS       `mapstructure:"tls"`
}

type Config struct {
	LogLevel       slog.Level `mapstructure:"log_level"`
	HTTPServerAddr string     `mapstructure:"http_server_addr"`
	Storage        storage    `mapstructure:"storage"`
	Broker         broker     `mapstructure:"broker"`
}

// EventsEnabled reports whether a broker is configured.
func (c Config) EventsEnabled() bool {
	return len(c.Broker.SeedBrokers) != 0
}

// Load reads the file named by --config or DARKSTORE_CONFIG_FILE and
// exits the process on error.
func Load() Config {
	cfg, err := LoadFile(getConfigFilepath())
	if err != nil {
		die(err)
	}
	return cfg
}

// LoadFile reads path, applies defaults and DARKSTORE_* environment
// overrides, and validates the result. Unknown keys are an error.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, err
	}

	var cfg Config
	err := v.UnmarshalExact(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("http_server_addr", ":8080")
	v.SetDefault("storage.driver", DriverFile)
	v.SetDefault("storage.dir", "./data")
	v.SetDefault("storage.redis.prefix", "darkstore")
	v.SetDefault("storage.codec", "json")
	v.SetDefault("storage.cart_key", "darkstore-cart")
	v.SetDefault("storage.products_key", "darkstore-products")
	v.SetDefault("storage.async", true)
	v.SetDefault("storage.write_timeout", "5s")
	v.SetDefault("broker.topics.cart_events", "darkstore-cart-events")
	v.SetDefault("broker.topics.products", "darkstore-products")
	v.SetDefault("broker.consumers.products_group", "darkstore-catalog")
}

func (c Config) validate() error {
	s := c.Storage
	switch s.Driver {
	case DriverFile:
		if s.Dir == "" {
			return errors.New("storage.dir is required for the file driver")
		}
	case DriverSQL:
		if s.SQLDB == "" {
			return errors.New("storage.sql_db is required for the sql driver")
		}
	case DriverRedis:
		if s.Redis.Addr == "" {
			return errors.New("storage.redis.addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", s.Driver)
	}

	if !slices.Contains([]string{"json", "avro"}, s.Codec) {
		return fmt.Errorf("unknown storage.codec %q", s.Codec)
	}
	if s.CartKey == s.ProductsKey {
		return errors.New("storage.cart_key and storage.products_key must differ")
	}
	if c.EventsEnabled() && len(c.Broker.SchemaRegistryURLs) == 0 {
		return errors.New("broker.schema_registry_urls is required with seed brokers")
	}
	for name, t := range map[string]TLS{
		"storage.redis.tls": s.Redis.TLS,
		"broker.tls":        c.Broker.TLS,
	} {
		if (t.CertFile == "") != (t.KeyFile == "") {
			return fmt.Errorf("%s: cert_file and key_file go together", name)
		}
		if t.CertFile != "" && !t.Enabled() {
			return fmt.Errorf("%s: ca_file is required", name)
		}
	}
	return nil
}

func getConfigFilepath() string {
	cmdLine := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	arg := cmdLine.String("config", "/config.yaml", "config file")
	_ = cmdLine.Parse(os.Args[1:])
	env, ok := os.LookupEnv(configFileEnvName)
	if ok {
		return env
	}
	return *arg
}

func die(err error) {
	fmt.Printf("failed to load config file: %v\n", err)
	os.Exit(2)
}

func (c Config) Print() {
	tamplate := `
	General:
	LogLevel=%q
	HTTPServerAddr=%q

	Storage:
	Driver=%q
	Dir=%q
	RedisAddr=%q
	RedisTLS=%t
	Codec=%q
	CartKey=%q
	ProductsKey=%q
	Async=%t
	WriteTimeout=%s

	BrokerConfig:
	SeedBrokers=%q
	SchemaRegistryURLs=%q
	Topics:
		CartEvents=%q
		Products=%q
	Consumers:
		ProductsGroup=%q
	TLS=%t

`
	fmt.Println("Loaded config:")
	fmt.Printf(
		strings.TrimLeft(tamplate, "\n"),
		c.LogLevel,
		c.HTTPServerAddr,
		c.Storage.Driver,
		c.Storage.Dir,
		c.Storage.Redis.Addr,
		c.Storage.Redis.TLS.Enabled(),
		c.Storage.Codec,
		c.Storage.CartKey,
		c.Storage.ProductsKey,
		c.Storage.Async,
		c.Storage.WriteTimeout,
		c.Broker.SeedBrokers,
		c.Broker.SchemaRegistryURLs,
		c.Broker.Topics.CartEvents,
		c.Broker.Topics.Products,
		c.Broker.Consumers.ProductsGroup,
		c.Broker.TLS.Enabled(),
	)
}
