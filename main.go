////////////////////////////////////////////////////////////////////////////
// Program start

package main

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/AGPFMiner/poolbridge/bridge"
	"github.com/AGPFMiner/poolbridge/types"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

////////////////////////////////////////////////////////////////////////////
// Constant and data type/structure definitions

const version = "0.1.0"

// The main command describes the service and defaults to printing the
// help message.
var mainCmd = &cobra.Command{
	Use:   "poolbridge",
	Short: "Bridge between a local proof-of-work search process and a mining pool",
	Long:  `Bridge between a local proof-of-work search process and a mining pool`,
	Run: func(cmd *cobra.Command, args []string) {
		serve()
	},
}

// The version command prints this service.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version.",
	Long:  "The version of the poolbridge service.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

var mainbridge = &bridge.Bridge{}

// Go special automatically executed init function
func init() {
	mainCmd.AddCommand(versionCmd)

	viper.SetDefault("listen", "127.0.0.1:9833")
	viper.SetDefault("refreshinterval", 10)
	viper.SetDefault("debug", "info")
	viper.SetDefault("pool.url", "http://127.0.0.1:9933")
	viper.SetDefault("pool.algo", "grid2d")

	pflag.String("cfg", "poolbridge.json", "config file path")
}

// loadConfig locates and reads the config file and arranges a live reload
// of the reloadable settings.
func loadConfig() {
	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	fullcfgname := viper.GetString("cfg")

	log.Print("Config file: ", fullcfgname)
	cfgname := strings.TrimSuffix(fullcfgname, filepath.Ext(fullcfgname))
	// Viper supports reading from yaml, toml and/or json files. Viper can
	// search multiple paths. Paths will be searched in the order they are
	// provided. Searches stopped once Config File found.
	if fullcfgname != "poolbridge.json" {
		viper.SetConfigFile(fullcfgname)
	} else {
		viper.SetConfigName(cfgname)           // name of config file (without extension)
		viper.AddConfigPath(".")               // more path to look for the config files
		viper.AddConfigPath("/etc/poolbridge") // path to look for the config file in
	}

	err := viper.ReadInConfig()
	if err != nil {
		println("No config file found. Using built-in defaults.")
	}

	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		fmt.Println("Config file changed:", e.Name)
		// identity and key are construction-time only; a changed pool
		// section needs a restart
		mainbridge.LogLevel = viper.GetString("debug")
		mainbridge.Reload()
	})
}

////////////////////////////////////////////////////////////////////////////
// Main

func main() {
	mainCmd.Execute()
}

////////////////////////////////////////////////////////////////////////////
// Function definitions
func serve() {
	loadConfig()

	var pool types.Pool
	viper.UnmarshalKey("pool", &pool)
	mainbridge.Pool = pool

	mainbridge.ListenAddr = viper.GetString("listen")
	mainbridge.RefreshInterval = viper.GetInt64("refreshinterval")

	mainbridge.LogLevel = viper.GetString("debug")
	if err := mainbridge.BridgeMain(); err != nil {
		log.Fatal(err)
	}
}
