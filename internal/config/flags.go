package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/ordvault/internal/flagx"
)

// parseFlags overlays the daemon flags onto config.
//
// Supported flags:
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-d string   database DSN (postgres://..., sqlite://..., *.db)
//	-n string   network (mainnet, signet, testnet4)
//	-l string   log level
//	-data string data directory
//
// Only these flags are taken from os.Args; everything else is left to other
// parsers.
func parseFlags(config *Config) {
	err := flagx.Parse("main", os.Args[1:], []string{"-a", "-d", "-n", "-l", "-data"}, func(fs *flag.FlagSet) {
		fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
		fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
		fs.StringVar(&config.Network, "n", config.Network, "bitcoin network")
		fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
		fs.StringVar(&config.DataDir, "data", config.DataDir, "data directory")
	})
	if err != nil {
		panic(err)
	}
}
