package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ernie/altcheck/internal/config"
	flag "github.com/spf13/pflag"
)

// cmdInit writes a default config with a fresh JWT secret and prepares
// the SQLite data directory
func cmdInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to write the configuration file")
	fs.Parse(args)

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		fatalf("generating JWT secret: %v", err)
	}

	err := config.WriteDefault(*configPath, hex.EncodeToString(secret))
	if errors.Is(err, config.ErrConfigExists) {
		fmt.Printf("altcheck is already initialized (%s exists).\n", *configPath)
		fmt.Println("To re-initialize, remove the config file first.")
		return
	}
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("Wrote %s\n", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalf("reloading config: %v", err)
	}
	if cfg.Database.Driver == config.DriverSQLite {
		dir := filepath.Dir(cfg.Database.Path)
		if err := os.MkdirAll(dir, 0750); err != nil {
			fatalf("creating data directory: %v", err)
		}
		fmt.Printf("Data directory %s ready\n", dir)
	}

	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  1. Add your proxy log under sources: in %s\n", *configPath)
	fmt.Println("  2. Create an admin: altcheck user add --admin <username>")
	fmt.Println("  3. Start the server: altcheck serve")
}
