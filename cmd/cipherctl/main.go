// Command cipherctl runs Turkish classical ciphers and toy RSA from the
// command line, either locally or against a cipherd gRPC endpoint.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/RowanDark/cipherlab/internal/cipher"
	"github.com/RowanDark/cipherlab/internal/config"
	"github.com/RowanDark/cipherlab/internal/env"
	"github.com/RowanDark/cipherlab/internal/history"
	"github.com/RowanDark/cipherlab/internal/logging"
	"github.com/RowanDark/cipherlab/internal/rpc"
	"github.com/RowanDark/cipherlab/internal/service"
)

const productName = "cipherlab"

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds state shared by every subcommand. The service and remote client
// are created on first use so commands like version never touch the disk.
type app struct {
	configPath string
	server     string
	token      string
	logLevel   string
	noHistory  bool

	cfg    config.Config
	svc    *service.Service
	store  *history.Store
	remote *rpc.Client
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "cipherctl",
		Short:         "Turkish classical cipher toolkit",
		Long:          productName + " CLI (cipherctl): Caesar, Vigenère, Beaufort, substitution, Atbash, Playfair, rail fence, columnar and toy RSA over the 29-letter Turkish alphabet.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close()
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "explicit config file (default: ~/.cipherlab/config.yml then ./cipherlab.yml)")
	flags.StringVar(&a.server, "server", "", "cipherd gRPC address; run operations remotely instead of locally")
	flags.StringVar(&a.token, "token", "", "bearer token for --server (default $CIPHERLAB_TOKEN)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	flags.BoolVar(&a.noHistory, "no-history", false, "do not record local executions")

	root.AddCommand(
		newListCmd(a),
		newRunCmd(a),
		newShorthandCmd(a, "encrypt"),
		newShorthandCmd(a, "decrypt"),
		newCrackCmd(a),
		newRSACmd(a),
		newRecipeCmd(a),
		newHistoryCmd(a),
		newConfigCmd(a),
		newTokenCmd(),
		newVersionCmd(),
	)
	return root
}

func (a *app) init() error {
	var err error
	if strings.TrimSpace(a.configPath) != "" {
		a.cfg, err = config.LoadFile(a.configPath)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	level := a.cfg.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	logging.Init(level, true)
	if a.token == "" {
		if val, ok := env.Setting("TOKEN"); ok {
			a.token = strings.TrimSpace(val)
		}
	}
	return nil
}

func (a *app) close() error {
	var firstErr error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			firstErr = err
		}
		a.store = nil
	}
	if a.remote != nil {
		if err := a.remote.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.remote = nil
	}
	return firstErr
}

// service returns the local cipher service, opening history and recipes.
func (a *app) service() (*service.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	recipes := cipher.NewRecipeManager(a.cfg.RecipesDir)
	recipes.LoadBuiltins()
	if err := recipes.LoadRecipes(); err != nil {
		return nil, err
	}
	opts := service.Options{Recipes: recipes}
	if !a.noHistory && strings.TrimSpace(a.cfg.HistoryPath) != "" {
		store, err := history.Open(a.cfg.HistoryPath)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		a.store = store
		opts.History = store
	}
	a.svc = service.New(opts)
	return a.svc, nil
}

func (a *app) client() (*rpc.Client, error) {
	if a.remote != nil {
		return a.remote, nil
	}
	client, err := rpc.Dial(a.server, a.token)
	if err != nil {
		return nil, err
	}
	a.remote = client
	return client, nil
}

func (a *app) isRemote() bool {
	return strings.TrimSpace(a.server) != ""
}

// callContext tags local executions so history and audit show the CLI as
// the surface.
func callContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	return service.WithCaller(ctx, service.Caller{Subject: currentUser(), Surface: "cli"}), cancel
}

func currentUser() string {
	for _, key := range []string{"USER", "USERNAME"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}
