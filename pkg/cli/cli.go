package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/igolaizola/sunogen"
	"github.com/igolaizola/sunogen/pkg/cmd/batch"
	"github.com/igolaizola/sunogen/pkg/cmd/migrate"
	"github.com/igolaizola/sunogen/pkg/cmd/query"
	"github.com/igolaizola/sunogen/pkg/cmd/setting"
	"github.com/igolaizola/sunogen/pkg/cmd/web"
	"github.com/igolaizola/sunogen/pkg/node"
	"github.com/igolaizola/sunogen/pkg/suno"
	"github.com/peterbourgon/ff/ffyaml"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
)

func New(version, commit, date string) *ffcli.Command {
	fs := flag.NewFlagSet("sunogen", flag.ExitOnError)

	return &ffcli.Command{
		ShortUsage: "sunogen [flags] <subcommand>",
		FlagSet:    fs,
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
		Subcommands: []*ffcli.Command{
			newVersionCommand(version, commit, date),
			newMigrateCommand(),
			newSettingCommand(),
			newGenerateCommand(),
			newBatchCommand(),
			newQueryCommand(),
			newWebCommand(),
		},
	}
}

func newVersionCommand(version, commit, date string) *ffcli.Command {
	return &ffcli.Command{
		Name:       "version",
		ShortUsage: "sunogen version",
		ShortHelp:  "print version",
		Exec: func(ctx context.Context, args []string) error {
			v := version
			if v == "" {
				if buildInfo, ok := debug.ReadBuildInfo(); ok {
					v = buildInfo.Main.Version
				}
			}
			if v == "" {
				v = "dev"
			}
			versionFields := []string{v}
			if commit != "" {
				versionFields = append(versionFields, commit)
			}
			if date != "" {
				versionFields = append(versionFields, date)
			}
			fmt.Println(strings.Join(versionFields, " "))
			return nil
		},
	}
}

func newMigrateCommand() *ffcli.Command {
	cmd := "migrate"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &migrate.Config{}

	fs.StringVar(&cfg.DBType, "db-type", "", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "", "path for sqlite, dsn for mysql or postgres")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("sunogen %s [flags] <key> <value data...>", cmd),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix("SUNOGEN"),
		},
		ShortHelp: fmt.Sprintf("sunogen %s action", cmd),
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			return migrate.Run(ctx, cfg)
		},
	}
}

func newSettingCommand() *ffcli.Command {
	cmd := "setting"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &setting.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.DBType, "db-type", "", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "", "path for sqlite, dsn for mysql or postgres")
	fs.StringVar(&cfg.Account, "account", "", "account name")
	fs.StringVar(&cfg.Value, "value", "", "api key to store")
	fs.BoolVar(&cfg.Delete, "delete", false, "delete the stored api key")
	fs.BoolVar(&cfg.List, "list", false, "list stored settings")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("sunogen %s [flags] <key> <value data...>", cmd),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix("SUNOGEN"),
		},
		ShortHelp: fmt.Sprintf("sunogen %s action", cmd),
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			return setting.Run(ctx, cfg)
		},
	}
}

func newGenerateCommand() *ffcli.Command {
	cmd := "generate"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &sunogen.Config{}
	params := &node.Params{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.Key, "key", "", "suno api key")
	fs.StringVar(&cfg.Proxy, "proxy", "", "proxy to use")
	fs.StringVar(&cfg.Output, "output", "", "output folder for the generated assets")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", 0, "wait time between status checks (0 means default)")
	fs.DurationVar(&cfg.PollTimeout, "poll-timeout", 0, "maximum time to wait for a generation (0 means default)")

	var model string
	fs.BoolVar(&params.CustomMode, "custom", false, "custom mode with full control over lyrics, style and title")
	fs.StringVar(&model, "model", "", "model version (V5, V4_5PLUS, V4_5, V4, V3_5)")
	fs.StringVar(&params.Prompt, "prompt", "", "song description or lyrics in custom mode")
	fs.StringVar(&params.Style, "style", "", "music style, custom mode only")
	fs.StringVar(&params.Title, "title", "", "song title, custom mode only")
	fs.BoolVar(&params.Instrumental, "instrumental", false, "instrumental song")
	fs.StringVar(&params.VocalGender, "vocal-gender", "", "vocal gender (auto, m, f)")
	fs.StringVar(&params.NegativeTags, "negative-tags", "", "styles to avoid")
	fs.Float64Var(&params.StyleWeight, "style-weight", 0, "style adherence (0 means default)")
	fs.Float64Var(&params.WeirdnessConstraint, "weirdness", 0, "creative deviation (0 means default)")
	fs.Float64Var(&params.AudioWeight, "audio-weight", 0, "audio fidelity (0 means default)")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("sunogen %s [flags] <key> <value data...>", cmd),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix("SUNOGEN"),
		},
		ShortHelp: fmt.Sprintf("sunogen %s action", cmd),
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			params.Model = suno.Model(model)
			_, err := sunogen.Generate(ctx, cfg, params)
			return err
		},
	}
}

func newBatchCommand() *ffcli.Command {
	cmd := "batch"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &batch.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.DBType, "db-type", "", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "", "path for sqlite, dsn for mysql or postgres")
	fs.StringVar(&cfg.FSType, "fs-type", "", "fs type (local, s3)")
	fs.StringVar(&cfg.FSConn, "fs-conn", "", "path for local, key:secret@bucket.region for s3")
	fs.StringVar(&cfg.Proxy, "proxy", "", "proxy to use")
	fs.DurationVar(&cfg.Timeout, "timeout", 0, "timeout for the process (0 means no timeout)")
	fs.IntVar(&cfg.Limit, "limit", 0, "limit the number of generations (0 means 1)")
	fs.DurationVar(&cfg.WaitMin, "wait-min", 3*time.Second, "minimum wait time between generations")
	fs.DurationVar(&cfg.WaitMax, "wait-max", 1*time.Minute, "maximum wait time between generations")

	fs.StringVar(&cfg.Account, "account", "", "account to use")
	fs.StringVar(&cfg.Input, "input", "", "csv or json with requests (fields: weight,custom,model,prompt,style,title,instrumental)")
	fs.BoolVar(&cfg.CustomMode, "custom", false, "custom mode with full control over lyrics, style and title")
	fs.StringVar(&cfg.Model, "model", "", "model version (V5, V4_5PLUS, V4_5, V4, V3_5)")
	fs.StringVar(&cfg.Prompt, "prompt", "", "song description or lyrics in custom mode")
	fs.StringVar(&cfg.Style, "style", "", "music style, custom mode only")
	fs.StringVar(&cfg.Title, "title", "", "song title, custom mode only")
	fs.BoolVar(&cfg.Instrumental, "instrumental", false, "instrumental song")
	fs.StringVar(&cfg.VocalGender, "vocal-gender", "", "vocal gender (auto, m, f)")
	fs.StringVar(&cfg.NegativeTags, "negative-tags", "", "styles to avoid")
	fs.Float64Var(&cfg.StyleWeight, "style-weight", 0, "style adherence (0 means default)")
	fs.Float64Var(&cfg.Weirdness, "weirdness", 0, "creative deviation (0 means default)")
	fs.Float64Var(&cfg.AudioWeight, "audio-weight", 0, "audio fidelity (0 means default)")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("sunogen %s [flags] <key> <value data...>", cmd),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix("SUNOGEN"),
		},
		ShortHelp: fmt.Sprintf("sunogen %s action", cmd),
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			return batch.Run(ctx, cfg)
		},
	}
}

func newQueryCommand() *ffcli.Command {
	cmd := "query"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &query.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.DBType, "db-type", "", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "", "path for sqlite, dsn for mysql or postgres")
	fs.StringVar(&cfg.FSType, "fs-type", "", "fs type (local, s3)")
	fs.StringVar(&cfg.FSConn, "fs-conn", "", "path for local, key:secret@bucket.region for s3")
	fs.StringVar(&cfg.Proxy, "proxy", "", "proxy to use")
	fs.StringVar(&cfg.Account, "account", "", "account to use")
	fs.StringVar(&cfg.TaskID, "task", "", "task id to query")
	fs.BoolVar(&cfg.Wait, "wait", false, "wait for a terminal state and download the assets")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("sunogen %s [flags] <key> <value data...>", cmd),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix("SUNOGEN"),
		},
		ShortHelp: fmt.Sprintf("sunogen %s action", cmd),
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			return query.Run(ctx, cfg)
		},
	}
}

func newWebCommand() *ffcli.Command {
	cmd := "web"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &web.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.DBType, "db-type", "", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "", "path for sqlite, dsn for mysql or postgres")
	fs.StringVar(&cfg.Proxy, "proxy", "", "proxy to use")
	fs.StringVar(&cfg.Account, "account", "", "account to use")
	fs.StringVar(&cfg.Addr, "addr", ":1337", "address to listen on")
	fsMapVar(fs, &cfg.Credentials, "creds", nil, "credentials to use (semicolon separated) Example: user1:pass1;user2:pass2")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("sunogen %s [flags] <key> <value data...>", cmd),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix("SUNOGEN"),
		},
		ShortHelp: fmt.Sprintf("sunogen %s action", cmd),
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			return web.Serve(ctx, cfg)
		},
	}
}

type mapValue struct {
	v *map[string]string
}

func (m *mapValue) String() string {
	if m.v == nil {
		return ""
	}
	return fmt.Sprintf("%v", map[string]string(*m.v))
}

func (m *mapValue) Set(value string) error {
	if m.v == nil {
		return errors.New("nil map reference")
	}
	pairs := strings.Split(value, ";")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid map entry: %s", pair)
		}
		(*m.v)[parts[0]] = parts[1]
	}
	return nil
}

func fsMapVar(fs *flag.FlagSet, p *map[string]string, name string, value map[string]string, usage string) {
	if value == nil {
		value = make(map[string]string)
	}
	*p = value
	fs.Var(&mapValue{p}, name, usage)
}
