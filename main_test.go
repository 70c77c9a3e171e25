package main

import (
	"testing"

	"github.com/AGPFMiner/poolbridge/bridge"
	"github.com/AGPFMiner/poolbridge/types"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/viper"
)

func TestReadConfig(t *testing.T) {
	viper.SetDefault("listen", "127.0.0.1:9833")
	viper.SetDefault("refreshinterval", 10)
	viper.SetDefault("debug", "info")
	viper.SetDefault("pool.url", "http://127.0.0.1:9933")
	viper.SetDefault("pool.algo", "grid2d")

	viper.SetConfigName("poolbridge")      // name of config file (without extension)
	viper.AddConfigPath("/etc/poolbridge") // path to look for the config file in
	viper.AddConfigPath(".")               // more path to look for the config files

	err := viper.ReadInConfig()
	if err != nil {
		println("No config file found. Using built-in defaults.")
	}

	var mainbridge = &bridge.Bridge{}
	var pool types.Pool
	viper.UnmarshalKey("pool", &pool)
	mainbridge.Pool = pool

	mainbridge.ListenAddr = viper.GetString("listen")
	mainbridge.RefreshInterval = viper.GetInt64("refreshinterval")
	mainbridge.LogLevel = viper.GetString("debug")

	if mainbridge.ListenAddr == "" {
		t.Error("listen address must default")
	}
	if mainbridge.Pool.Algo != "grid2d" {
		t.Errorf("pool algo %q", mainbridge.Pool.Algo)
	}
	t.Log(spew.Sdump(mainbridge.Pool))
}
