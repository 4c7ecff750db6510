package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"time"
	"unicode"

	"github.com/ArkLabsHQ/oracle-node/internal/infrastructure/nostr"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/spf13/viper"
)

const (
	sqliteDb = "sqlite"
	badgerDb = "badger"

	appName = "oracle"
)

type Config struct {
	Datadir             string `mapstructure:"DATADIR" envDefault:"oracle" envInfo:"Data directory for the oracle state"`
	DbType              string `mapstructure:"DB_TYPE" envDefault:"sqlite" envInfo:"Database backend: sqlite | badger"`
	HTTPPort            uint32 `mapstructure:"HTTP_PORT" envDefault:"7001" envInfo:"Status API port"`
	LogLevel            uint32 `mapstructure:"LOG_LEVEL" envDefault:"4" envInfo:"Log verbosity (higher = more verbose)"`
	Network             string `mapstructure:"NETWORK" envDefault:"mainnet" envInfo:"Bitcoin network: mainnet | testnet | regtest | signet"`
	PollInterval        uint32 `mapstructure:"POLL_INTERVAL" envDefault:"10" envInfo:"Task poll interval in seconds"`
	RebroadcastInterval uint32 `mapstructure:"REBROADCAST_INTERVAL" envDefault:"600" envInfo:"Rebroadcast interval of signed transactions in seconds"`
	MinFee              int64  `mapstructure:"MIN_FEE" envDefault:"10000" envInfo:"Lowest fee in sats accepted per bounty"`

	BitcoindRpcHost string `mapstructure:"BITCOIND_RPC_HOST" envDefault:"localhost:8332" envInfo:"Bitcoind RPC address (host:port)"`
	BitcoindRpcUser string `mapstructure:"BITCOIND_RPC_USER" envDefault:"" envInfo:"Bitcoind RPC user"`
	BitcoindRpcPass string `mapstructure:"BITCOIND_RPC_PASS" envDefault:"" envInfo:"Bitcoind RPC password"`

	NostrRelays     string `mapstructure:"NOSTR_RELAYS" envDefault:"wss://relay.damus.io,wss://nos.lol" envInfo:"Comma separated list of nostr relays"`
	NostrPrivateKey string `mapstructure:"NOSTR_PRIVATE_KEY" envDefault:"" envInfo:"Nostr private key, generated under DATADIR if unset"`
	NostrLookback   uint32 `mapstructure:"NOSTR_LOOKBACK" envDefault:"86400" envInfo:"Seconds of relay history read on the first subscription"`

	CharterURL string `mapstructure:"CHARTER_URL" envDefault:"" envInfo:"URL of the federation charter"`
	EsploraURL string `mapstructure:"ESPLORA_URL" envDefault:"https://blockstream.info/api" envInfo:"Esplora base URL"`

	chainParams *chaincfg.Params
	nostrKey    string
}

func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("ORACLE")
	v.AutomaticEnv()

	if err := setDefaultConfig(v); err != nil {
		return nil, fmt.Errorf("error setting default config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %v", err)
	}

	if err := config.initDb(); err != nil {
		return nil, fmt.Errorf("error initializing data directory: %w", err)
	}

	if err := config.initNetwork(); err != nil {
		return nil, err
	}

	if err := config.initNostrKey(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) ChainParams() *chaincfg.Params {
	return c.chainParams
}

func (c *Config) NostrKey() string {
	return c.nostrKey
}

func (c *Config) Relays() []string {
	relays := make([]string, 0)
	for _, relay := range strings.Split(c.NostrRelays, ",") {
		if relay = strings.TrimSpace(relay); relay != "" {
			relays = append(relays, relay)
		}
	}
	return relays
}

func (c *Config) DbDir() string {
	return filepath.Join(c.Datadir, "db")
}

func (c *Config) PollIntervalDuration() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

func (c *Config) RebroadcastIntervalDuration() time.Duration {
	return time.Duration(c.RebroadcastInterval) * time.Second
}

func (c *Config) NostrLookbackDuration() time.Duration {
	return time.Duration(c.NostrLookback) * time.Second
}

func (c *Config) initDb() error {
	supportedDbType := map[string]struct{}{
		sqliteDb: {},
		badgerDb: {},
	}

	if _, ok := supportedDbType[c.DbType]; !ok {
		return fmt.Errorf("unsupported db type: %s", c.DbType)
	}

	if c.Datadir == DefaultDatadir {
		c.Datadir = appDatadir(appName, false)
	} else {
		c.Datadir = cleanAndExpandPath(c.Datadir)
	}

	return makeDirectoryIfNotExists(c.Datadir)
}

func (c *Config) initNetwork() error {
	params, err := networkFromString(c.Network)
	if err != nil {
		return err
	}
	c.chainParams = params
	return nil
}

func (c *Config) initNostrKey() error {
	key, err := nostr.LoadOrCreateKey(c.Datadir, c.NostrPrivateKey)
	if err != nil {
		return err
	}
	c.nostrKey = key
	return nil
}

func networkFromString(network string) (*chaincfg.Params, error) {
	switch strings.ToLower(network) {
	case "mainnet", "bitcoin":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network %s", network)
	}
}

func setDefaultConfig(v *viper.Viper) error {
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		key := f.Tag.Get("mapstructure")
		def := f.Tag.Get("envDefault")
		if def != "" {
			v.SetDefault(key, def)
		}
		err := v.BindEnv(key)
		if err != nil {
			return fmt.Errorf("error binding env variable for key %s: %w", key, err)
		}
	}
	return nil
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

// appDatadir returns an operating system specific directory to be used for
// storing application data.
func appDatadir(appName string, roaming bool) string {
	if appName == "" || appName == "." {
		return "."
	}

	appName = strings.TrimPrefix(appName, ".")
	appNameUpper := string(unicode.ToUpper(rune(appName[0]))) + appName[1:]
	appNameLower := string(unicode.ToLower(rune(appName[0]))) + appName[1:]

	var homeDir string
	usr, err := user.Current()
	if err == nil {
		homeDir = usr.HomeDir
	}
	if err != nil || homeDir == "" {
		homeDir = os.Getenv("HOME")
	}

	switch runtime.GOOS {
	case "windows":
		// LOCALAPPDATA is missing on Windows XP and before.
		appData := os.Getenv("LOCALAPPDATA")
		if roaming || appData == "" {
			appData = os.Getenv("APPDATA")
		}
		if appData != "" {
			return filepath.Join(appData, appNameUpper)
		}

	case "darwin":
		if homeDir != "" {
			return filepath.Join(homeDir, "Library", "Application Support", appNameUpper)
		}

	default:
		if homeDir != "" {
			return filepath.Join(homeDir, "."+appNameLower)
		}
	}

	return "."
}

func cleanAndExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~") {
		var homeDir string
		u, err := user.Current()
		if err == nil {
			homeDir = u.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: os.ExpandEnv doesn't expand Windows-style %VARIABLE%.
	return filepath.Clean(os.ExpandEnv(path))
}
