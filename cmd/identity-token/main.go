package main

import (
	"flag"
	"os"

	entrypoint "github.com/Kingl1tz/shoppal/internal/platform/cmd"
	"github.com/Kingl1tz/shoppal/internal/platform/config"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/identity"
	"github.com/Kingl1tz/shoppal/internal/tools/identitytoken"
)

func main() {
	cfg, err := identitytoken.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := config.LoadDotEnv(os.Getenv(entrypoint.DotEnvPathVar), ".env"); err != nil {
		config.Exitf("load env: %v", err)
	}
	tokenCfg, err := identity.LoadTokenConfigFromEnv(nil)
	if err != nil {
		config.Exitf("load identity config: %v", err)
	}
	if err := identitytoken.Run(cfg, tokenCfg, os.Stdout); err != nil {
		config.Exitf("mint token: %v", err)
	}
}
