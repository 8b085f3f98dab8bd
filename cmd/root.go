package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "dev"

// options carries what every subcommand needs to build its runtime.
type options struct {
	v       *viper.Viper
	cfgFile string
	envFile string
}

func newRootCmd() *cobra.Command {
	opts := &options{v: viper.New()}

	root := &cobra.Command{
		Use:           "dnaconv",
		Short:         "Manage and run DNA converter plugins",
		Long:          `dnaconv keeps an ordered list of converter plugins that turn DNA values into output parameters, persists it, and serves it over HTTP.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.cfgFile, "config", "c", "", "config file (default: ./dnaconv.yaml)")
	pf.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	pf.String("controller", "", "controller name")
	pf.String("backend", "", "plugin store backend: file, sqlite or memory")
	pf.String("store", "", "plugin store path")
	pf.String("asset", "", "DNA asset file (default: built-in asset)")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.Bool("read-only", false, "log plugin changes instead of saving them")

	// Bind flags to viper
	_ = opts.v.BindPFlag("controller", pf.Lookup("controller"))
	_ = opts.v.BindPFlag("store.backend", pf.Lookup("backend"))
	_ = opts.v.BindPFlag("store.path", pf.Lookup("store"))
	_ = opts.v.BindPFlag("asset_path", pf.Lookup("asset"))
	_ = opts.v.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = opts.v.BindPFlag("read_only", pf.Lookup("read-only"))

	root.AddCommand(
		newServeCmd(opts),
		newKindsCmd(opts),
		newPluginsCmd(opts),
		newNamesCmd(opts),
		newApplyCmd(opts),
		newValidateCmd(opts),
	)
	return root
}
