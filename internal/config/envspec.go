//go:generate go run ../../tools/gen-env-doc/main.go
package config

import "fmt"

const (
	Datadir             = "DATADIR"
	DbType              = "DB_TYPE"
	HTTPPort            = "HTTP_PORT"
	LogLevel            = "LOG_LEVEL"
	Network             = "NETWORK"
	PollInterval        = "POLL_INTERVAL"
	RebroadcastInterval = "REBROADCAST_INTERVAL"
	MinFee              = "MIN_FEE"
	BitcoindRpcHost     = "BITCOIND_RPC_HOST"
	BitcoindRpcUser     = "BITCOIND_RPC_USER"
	BitcoindRpcPass     = "BITCOIND_RPC_PASS"
	NostrRelays         = "NOSTR_RELAYS"
	NostrPrivateKey     = "NOSTR_PRIVATE_KEY"
	NostrLookback       = "NOSTR_LOOKBACK"
	CharterURL          = "CHARTER_URL"
	EsploraURL          = "ESPLORA_URL"

	DefaultDatadir             = "oracle"
	DefaultDbType              = "sqlite"
	DefaultHTTPPort            = 7001
	DefaultLogLevel            = 4
	DefaultNetwork             = "mainnet"
	DefaultPollInterval        = 10
	DefaultRebroadcastInterval = 600
	DefaultMinFee              = 10000
	DefaultBitcoindRpcHost     = "localhost:8332"
	DefaultNostrRelays         = "wss://relay.damus.io,wss://nos.lol"
	DefaultNostrLookback       = 86400
	DefaultEsploraURL          = "https://blockstream.info/api"
)

type EnvVar struct {
	Name        string // short name under the ORACLE_ prefix (e.g., "DATADIR")
	FullName    string // e.g., "ORACLE_DATADIR"
	Type        string // human-readable type
	Default     string // default value as a string ("" if none)
	Description string // one-liner for docs
	Notes       string // optional: constraints, examples, etc.
}

func EnvSpecs() []EnvVar {
	const P = "ORACLE_"

	return []EnvVar{
		{
			Name:        Datadir,
			FullName:    P + Datadir,
			Type:        "string (path)",
			Default:     DefaultDatadir,
			Description: "Data directory for the oracle state",
			Notes:       "Defaults to the OS application data directory.",
		},
		{
			Name:        DbType,
			FullName:    P + DbType,
			Type:        "string",
			Default:     DefaultDbType,
			Description: "Database backend: sqlite | badger",
		},
		{
			Name:        HTTPPort,
			FullName:    P + HTTPPort,
			Type:        "uint32 (port)",
			Default:     fmt.Sprintf("%d", DefaultHTTPPort),
			Description: "Status API port",
		},
		{
			Name:        LogLevel,
			FullName:    P + LogLevel,
			Type:        "uint32 (0–6)",
			Default:     fmt.Sprintf("%d", DefaultLogLevel),
			Description: "Log verbosity (higher = more verbose)",
		},
		{
			Name:        Network,
			FullName:    P + Network,
			Type:        "string",
			Default:     DefaultNetwork,
			Description: "Bitcoin network: mainnet | testnet | regtest | signet",
		},
		{
			Name:        PollInterval,
			FullName:    P + PollInterval,
			Type:        "uint32 (seconds)",
			Default:     fmt.Sprintf("%d", DefaultPollInterval),
			Description: "Task poll interval",
		},
		{
			Name:        RebroadcastInterval,
			FullName:    P + RebroadcastInterval,
			Type:        "uint32 (seconds)",
			Default:     fmt.Sprintf("%d", DefaultRebroadcastInterval),
			Description: "Interval between rebroadcasts of a signed transaction until it gets the quorum",
		},
		{
			Name:        MinFee,
			FullName:    P + MinFee,
			Type:        "int64 (sats)",
			Default:     fmt.Sprintf("%d", DefaultMinFee),
			Description: "Lowest fee accepted per bounty",
		},
		// --- Bitcoind connection ---
		{
			Name:        BitcoindRpcHost,
			FullName:    P + BitcoindRpcHost,
			Type:        "string (host:port)",
			Default:     DefaultBitcoindRpcHost,
			Description: "Bitcoind RPC address",
			Notes:       "The wallet loaded in bitcoind holds the oracle keys.",
		},
		{
			Name:        BitcoindRpcUser,
			FullName:    P + BitcoindRpcUser,
			Type:        "string",
			Default:     "",
			Description: "Bitcoind RPC user",
		},
		{
			Name:        BitcoindRpcPass,
			FullName:    P + BitcoindRpcPass,
			Type:        "string",
			Default:     "",
			Description: "Bitcoind RPC password",
		},
		// --- Nostr transport ---
		{
			Name:        NostrRelays,
			FullName:    P + NostrRelays,
			Type:        "string (comma separated URLs)",
			Default:     DefaultNostrRelays,
			Description: "Nostr relays used to exchange messages with the federation",
		},
		{
			Name:        NostrPrivateKey,
			FullName:    P + NostrPrivateKey,
			Type:        "string (hex)",
			Default:     "",
			Description: "Nostr private key identifying this node",
			Notes:       "If unset, a key is generated once and stored under DATADIR.",
		},
		{
			Name:        NostrLookback,
			FullName:    P + NostrLookback,
			Type:        "uint32 (seconds)",
			Default:     fmt.Sprintf("%d", DefaultNostrLookback),
			Description: "Seconds of relay history read on the first subscription",
			Notes:       "Later restarts resume from the last event handled, stored under DATADIR.",
		},
		// --- Client ---
		{
			Name:        CharterURL,
			FullName:    P + CharterURL,
			Type:        "string (URL)",
			Default:     "",
			Description: "URL of the federation charter (oracle-cli only)",
		},
		{
			Name:        EsploraURL,
			FullName:    P + EsploraURL,
			Type:        "string (URL)",
			Default:     DefaultEsploraURL,
			Description: "Esplora base URL used to find the bounty funds (oracle-cli only)",
		},
	}
}
