package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bily-amin/habitica/internal/client/client"
	"github.com/bily-amin/habitica/internal/client/config"
)

type App struct {
	config *config.Config
	api    client.Client
	reader *bufio.Reader
	out    io.Writer

	// dial is a seam for tests.
	dial func(cfg *config.Config) (client.Client, error)
}

func NewApp(c *config.Config) *App {
	return &App{
		config: c,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		dial: func(cfg *config.Config) (client.Client, error) {
			return client.NewChallengeClient(cfg.ServerEndpointAddr, cfg.AccessToken, cfg.CallTimeout)
		},
	}
}

// globalFlags are consumed by the config package and skipped when looking
// for the command name.
var globalFlags = map[string]bool{"-a": true, "-token": true, "-timeout": true, "-c": true, "-config": true}

// splitCommand returns the command name and its arguments, skipping the
// global flags that precede it.
func splitCommand(args []string) (string, []string) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, _, hasValue := strings.Cut(arg, "=")
		if globalFlags[name] {
			if !hasValue {
				i++
			}
			continue
		}
		return arg, args[i+1:]
	}
	return "", nil
}

type command struct {
	name   string
	usage  string
	remote bool
	run    func(a *App, ctx context.Context, args []string) error
}

var commands = []command{
	{"create", "create -group <id> -name <name> -short <short> [-prize n] [-official] [-task type:text]...", true, (*App).create},
	{"get", "get <challenge-id>", true, (*App).get},
	{"list", "list [-page n] [-group <id>]", true, (*App).list},
	{"update", "update [-name s] [-short s] [-summary s] [-description s] <challenge-id>", true, (*App).update},
	{"task", "task -type <habit|daily|todo|reward> -text <text> [-notes s] [-value n] <challenge-id>", true, (*App).addTask},
	{"join", "join <challenge-id>", true, (*App).join},
	{"leave", "leave [-keep keep-all|remove-all] <challenge-id>", true, (*App).leave},
	{"delete", "delete <challenge-id>", true, (*App).delete},
	{"winner", "winner <challenge-id> <user-id>", true, (*App).winner},
	{"export", "export <challenge-id>", true, (*App).export},
	{"token", "token [-ttl duration] <user-id>", false, (*App).token},
}

func (a *App) usage() {
	fmt.Fprintln(a.out, "Usage: challengectl [-a addr] [-token t] [-timeout s] [-c file] <command>")
	fmt.Fprintln(a.out, "Commands:")
	for _, c := range commands {
		fmt.Fprintln(a.out, "  "+c.usage)
	}
}

// Run executes the command found in args (os.Args[1:]).
func (a *App) Run(ctx context.Context, args []string) error {
	name, rest := splitCommand(args)
	if name == "" || name == "help" {
		a.usage()
		return nil
	}

	for _, c := range commands {
		if c.name != name {
			continue
		}
		if c.remote {
			if err := a.connect(); err != nil {
				return err
			}
			defer a.api.Close()
		}
		err := c.run(a, ctx, rest)
		if errors.Is(err, errUsage) {
			fmt.Fprintln(a.out, "Usage: challengectl "+c.usage)
		}
		return err
	}

	a.usage()
	return fmt.Errorf("unknown command %q", name)
}

func (a *App) connect() error {
	if a.config.AccessToken == "" {
		token, err := GetSecret("Access token: ", a.out)
		if err != nil {
			return fmt.Errorf("read access token: %w", err)
		}
		if token == "" {
			return errors.New("an access token is required")
		}
		a.config.AccessToken = token
	}

	api, err := a.dial(a.config)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", a.config.ServerEndpointAddr, err)
	}
	a.api = api
	return nil
}
