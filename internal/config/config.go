// Package config loads the demo binary's defaults (tick/lot/fee
// parameters, slab and fill-queue sizing, log level) via
// github.com/spf13/viper.
//
// Grounded on 0xtitan6-polymarket-mm's viper-based config loading; the
// teacher itself hardcodes these constants in cmd/server/server.go, but
// ambient configuration is carried regardless per the instruction that
// ambient concerns apply even where the teacher happens not to need them.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds the demo binary's tunables.
type Config struct {
	DefaultTickSize  uint64
	DefaultLotSize   uint64
	DefaultMakerFee  uint64
	DefaultTakerFee  uint64
	SlabCapacity     int
	FillQueueDepth   int
	LogLevel         string
}

// Load reads configuration from (in priority order) environment
// variables prefixed DUSKBOOK_, a duskbook.yaml/json/toml in the working
// directory, and finally the hardcoded defaults below.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("duskbook")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("duskbook")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetDefault("tick_size", 100)
	v.SetDefault("lot_size", 1000)
	v.SetDefault("maker_fee_bps", 10)
	v.SetDefault("taker_fee_bps", 10)
	v.SetDefault("slab_capacity", 1000)
	v.SetDefault("fill_queue_depth", 4096)
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, err
		}
	}

	return &Config{
		DefaultTickSize: v.GetUint64("tick_size"),
		DefaultLotSize:  v.GetUint64("lot_size"),
		DefaultMakerFee: v.GetUint64("maker_fee_bps"),
		DefaultTakerFee: v.GetUint64("taker_fee_bps"),
		SlabCapacity:    v.GetInt("slab_capacity"),
		FillQueueDepth:  v.GetInt("fill_queue_depth"),
		LogLevel:        v.GetString("log_level"),
	}, nil
}
