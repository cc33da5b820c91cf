package main

import (
	"fmt"

	"github.com/urfave/cli"

	"github.com/babencoin/babencoin/config"
)

var dumpConfigCommand = cli.Command{
	Action:    dumpConfig,
	Name:      "dumpconfig",
	Usage:     "Show the effective configuration, optionally starting from --config",
	ArgsUsage: " ",
	Flags:     []cli.Flag{configFileFlag, dataDirFlag},
}

func dumpConfig(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	dumped, err := config.Dump(cfg)
	if err != nil {
		return err
	}
	fmt.Println(dumped)
	return nil
}
