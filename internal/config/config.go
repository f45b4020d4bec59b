package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	// HTTPPortKey is the port where the HTTP interface will listen on.
	HTTPPortKey = "HTTP_PORT"
	// DatadirKey is the local data directory to store the internal state of
	// the daemon.
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// DBTypeKey is used to switch database type between those supported.
	DBTypeKey = "DB_TYPE"
	// EscrowTypeKey is used to switch the escrow adapter between those
	// supported.
	EscrowTypeKey = "ESCROW_TYPE"
	// LedgerAddrKey is the base url of the remote escrow ledger service.
	LedgerAddrKey = "LEDGER_ADDR"
	// LedgerAPIKeyKey is the api key used to authenticate against the remote
	// escrow ledger service.
	LedgerAPIKeyKey = "LEDGER_API_KEY"
	// PaymentWindowKey is the fallback duration the buyer has to mark the
	// payment after the escrow is locked, for offers without their own.
	PaymentWindowKey = "PAYMENT_WINDOW"
	// EscrowDurationKey is the fallback duration the seller has to release
	// the escrow after the payment is marked, for offers without their own.
	EscrowDurationKey = "ESCROW_DURATION"
	// MaxDailyOrdersKey is the maximum number of offers a user can create
	// per day. 0 disables the cap.
	MaxDailyOrdersKey = "MAX_DAILY_ORDERS"
	// MaxDailyTradesKey is the maximum number of trades a user can open per
	// day. 0 disables the cap.
	MaxDailyTradesKey = "MAX_DAILY_TRADES"
	// MaxDailyVolumeKey is the maximum aggregate trade volume a user can
	// open per day. 0 disables the cap.
	MaxDailyVolumeKey = "MAX_DAILY_VOLUME"
	// NoWebhooksKey is used to start the daemon without the webhook pubsub
	// service.
	NoWebhooksKey = "NO_WEBHOOKS"

	DBBadger   = "badger"
	DBInMemory = "inmemory"

	EscrowInMemory = "inmemory"
	EscrowLedger   = "ledger"

	DbLocation = "db"
)

var vip *viper.Viper

func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("PEERTRADE")
	vip.AutomaticEnv()

	vip.SetDefault(HTTPPortKey, 9945)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(DatadirKey, defaultDatadir())
	vip.SetDefault(DBTypeKey, DBBadger)
	vip.SetDefault(EscrowTypeKey, EscrowInMemory)
	vip.SetDefault(PaymentWindowKey, 30*time.Minute)
	vip.SetDefault(EscrowDurationKey, 24*time.Hour)
	vip.SetDefault(MaxDailyOrdersKey, 0)
	vip.SetDefault(MaxDailyTradesKey, 0)
	vip.SetDefault(MaxDailyVolumeKey, "0")
	vip.SetDefault(NoWebhooksKey, false)

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

// GetDecimal parses the value of the given key as an arbitrary-precision
// decimal.
func GetDecimal(key string) (decimal.Decimal, error) {
	return decimal.NewFromString(GetString(key))
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	switch dbType := GetString(DBTypeKey); dbType {
	case DBBadger, DBInMemory:
	default:
		return fmt.Errorf("unsupported database type: %s", dbType)
	}

	switch escrowType := GetString(EscrowTypeKey); escrowType {
	case EscrowInMemory:
	case EscrowLedger:
		if GetString(LedgerAddrKey) == "" {
			return fmt.Errorf("missing ledger address")
		}
	default:
		return fmt.Errorf("unsupported escrow type: %s", escrowType)
	}

	if GetDuration(PaymentWindowKey) <= 0 {
		return fmt.Errorf("%s must be positive", PaymentWindowKey)
	}
	if GetDuration(EscrowDurationKey) <= 0 {
		return fmt.Errorf("%s must be positive", EscrowDurationKey)
	}

	volume, err := GetDecimal(MaxDailyVolumeKey)
	if err != nil {
		return fmt.Errorf("invalid %s: %s", MaxDailyVolumeKey, err)
	}
	if volume.IsNegative() {
		return fmt.Errorf("%s must not be negative", MaxDailyVolumeKey)
	}

	return nil
}

func initDatadir() error {
	if GetString(DBTypeKey) != DBBadger {
		return nil
	}
	return makeDirectoryIfNotExists(filepath.Join(GetDatadir(), DbLocation))
}

func defaultDatadir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".peertrade-daemon"
	}
	return filepath.Join(home, ".peertrade-daemon")
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
