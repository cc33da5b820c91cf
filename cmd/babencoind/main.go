// Command babencoind runs a babencoin node: it dials and/or listens for
// peers, gossips blocks and transactions, and mines. Its
// command surface (a default run action, --config, and a dumpconfig
// subcommand) follows the teacher's cmd/kcn entrypoint.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/urfave/cli"

	"github.com/babencoin/babencoin/config"
	"github.com/babencoin/babencoin/log"
	"github.com/babencoin/babencoin/node"
)

var logger = log.NewModuleLogger(log.CLI)

var configFileFlag = cli.StringFlag{
	Name:  "config",
	Usage: "TOML configuration file",
}

var dataDirFlag = cli.StringFlag{
	Name:  "datadir",
	Usage: "Directory for the node key and other persistent state (empty for an ephemeral node)",
}

var app = cli.NewApp()

func init() {
	app.Name = "babencoind"
	app.Usage = "the babencoin peer-to-peer node"
	app.HideVersion = true
	app.Flags = []cli.Flag{configFileFlag, dataDirFlag}
	app.Action = runNode
	app.Commands = []cli.Command{dumpConfigCommand}
}

func runNode(ctx *cli.Context) error {
	runtime.GOMAXPROCS(runtime.NumCPU())

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	n, err := node.New(cfg)
	if err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		logger.Info("received signal, shutting down", "signal", s)
		os.Exit(0)
	}()

	n.Run()
	return nil
}

// loadConfig reads --config if given, falling back to config.Default(),
// then applies --datadir as an override either way.
func loadConfig(ctx *cli.Context) (config.Config, error) {
	var cfg config.Config
	var err error
	if path := ctx.String(configFileFlag.Name); path != "" {
		cfg, err = config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
	} else {
		cfg = config.Default()
	}
	if dir := ctx.String(dataDirFlag.Name); dir != "" {
		cfg.DataDir = dir
	}
	return cfg, nil
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
