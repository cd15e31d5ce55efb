package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jacentio/marquee/source"
	"github.com/jacentio/marquee/store"
)

const envPrefix = "MARQUEE"

// options holds every flag shared by the subcommands.
type options struct {
	config     string
	dataDir    string
	subsetFile string
	table      string
	key        string
	batchSize  int
	maxRetries int
	region     string
	profile    string
	allPages   bool
	scanLimit  int32
	logFormat  string
	logLevel   string
}

// app carries the parsed options and the outputs of one invocation.
type app struct {
	opts   options
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger

	// newClient opens the table client. Tests replace it with a fake.
	newClient func(ctx context.Context, o options) (store.API, error)

	// createFile opens export output files. Nil uses os.Create.
	createFile func(name string) (io.WriteCloser, error)
}

// NewRootCommand builds the marquee command tree.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	return newRootCommand(&app{
		stdout:    stdout,
		stderr:    stderr,
		newClient: dynamoClient,
	})
}

func newRootCommand(a *app) *cobra.Command {
	if a.createFile == nil {
		a.createFile = func(name string) (io.WriteCloser, error) {
			return os.Create(name)
		}
	}
	rc := &cobra.Command{
		Use:   "marquee",
		Short: "Denormalize IMDb exports into a DynamoDB table and query it.",
		Long: `marquee joins the flat IMDb title, rating, crew, principal, episode and
name exports into one document per title, writes the documents to a
DynamoDB table in batches, and runs an analytical workload against it.

Every flag can also be set through a MARQUEE_ environment variable
(e.g. MARQUEE_TABLE, MARQUEE_DATA_DIR) or a config file passed with --config.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setAllConfig(viper.New(), cmd.Flags()); err != nil {
				return err
			}
			logger, err := newLogger(a.stderr, a.opts.logFormat, a.opts.logLevel)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
	}

	f := rc.PersistentFlags()
	f.StringVarP(&a.opts.config, "config", "c", "", "Configuration file to read from.")
	f.StringVar(&a.opts.dataDir, "data-dir", ".", "Directory holding the export files.")
	f.StringVar(&a.opts.subsetFile, "subset-file", "", "File of title keys, one per line, restricting the loaded titles.")
	f.StringVar(&a.opts.table, "table", "Movies", "DynamoDB table name.")
	f.StringVar(&a.opts.key, "key", "tconst", "Partition key attribute of the table.")
	f.IntVar(&a.opts.batchSize, "batch-size", 25, "Put requests per batch write (1-25).")
	f.IntVar(&a.opts.maxRetries, "max-retries", 10, "Resubmissions of unprocessed items per batch before giving up.")
	f.StringVar(&a.opts.region, "region", "", "AWS region. Defaults to the shared config.")
	f.StringVar(&a.opts.profile, "profile", "", "AWS shared config profile.")
	f.BoolVar(&a.opts.allPages, "all-pages", false, "Follow scan pagination instead of reading the first page only.")
	f.Int32Var(&a.opts.scanLimit, "scan-limit", 0, "Items evaluated per scan page; 0 uses the store's page size.")
	f.StringVar(&a.opts.logFormat, "log-format", "text", "Log format: text or json.")
	f.StringVar(&a.opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error.")

	rc.AddCommand(newLoadCommand(a))
	rc.AddCommand(newExportCommand(a))
	rc.AddCommand(newWorkloadCommand(a))
	rc.AddCommand(newGetCommand(a))

	rc.SetOut(a.stdout)
	rc.SetErr(a.stderr)
	return rc
}

// setAllConfig applies, in priority order, command line flags, MARQUEE_
// environment variables and the config file named by --config to every flag
// in flags. Environment names are the upper-cased flag names with dashes
// replaced by underscores.
func setAllConfig(v *viper.Viper, flags *pflag.FlagSet) error {
	if err := v.BindPFlags(flags); err != nil {
		return err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if c := v.GetString("config"); c != "" {
		v.SetConfigFile(c)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading configuration file '%s': %w", c, err)
		}
		valid := make(map[string]bool)
		flags.VisitAll(func(f *pflag.Flag) {
			valid[f.Name] = true
		})
		for _, key := range v.AllKeys() {
			if !valid[key] {
				return fmt.Errorf("invalid option in configuration file: %v", key)
			}
		}
	}

	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil || f.Changed {
			return
		}
		var value string
		if f.Value.Type() == "stringSlice" {
			// A list from a config file reads back as "" through GetString.
			value = strings.Join(v.GetStringSlice(f.Name), ",")
		} else {
			value = v.GetString(f.Name)
		}
		if value == "" && f.Value.Type() == "stringSlice" {
			return
		}
		flagErr = f.Value.Set(value)
	})
	return flagErr
}

// newLogger builds the slog handler selected by format and level.
func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q: want text or json", format)
	}
}

// dynamoClient loads AWS configuration for the region and profile options.
func dynamoClient(ctx context.Context, o options) (store.API, error) {
	var loadOpts []func(*config.LoadOptions) error
	if o.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(o.region))
	}
	if o.profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(o.profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg), nil
}

// storeConfig maps the options onto a store configuration.
func (o options) storeConfig() store.Config {
	cfg := store.DefaultConfig()
	cfg.TableName = o.table
	cfg.KeyAttribute = o.key
	cfg.BatchSize = o.batchSize
	cfg.Retry.MaxRetries = o.maxRetries
	return cfg
}

func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	client, err := a.newClient(ctx, a.opts)
	if err != nil {
		return nil, err
	}
	return store.New(client, a.opts.storeConfig(), a.logger), nil
}

func (a *app) loader() (*source.Loader, error) {
	l := source.NewLoader(a.opts.dataDir, nil, a.logger)
	if a.opts.subsetFile == "" {
		return l, nil
	}
	keys, err := source.ReadKeys(a.opts.subsetFile)
	if err != nil {
		return nil, err
	}
	l.SetSubset(keys)
	a.logger.Info("subset applied", "keys", len(keys))
	return l, nil
}
