// Package command defines the kvs-client CLI commands.
//
// Each command opens one connection, issues one request, and maps the
// response to the conventional output: get prints the value or "Key
// not found" on stdout, rm reports a missing key on stderr with a
// non-zero exit.
package command

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/kvslab/kvs/internal/client"
	"github.com/kvslab/kvs/internal/engine"
)

// DefaultAddr is the default server address.
const DefaultAddr = "127.0.0.1:4000"

// Build information, set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// App creates the kvs-client CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "kvs-client",
		Usage:   "command-line client for the kvs key-value server",
		Version: fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Commands: []*cli.Command{
			SetCommand(),
			GetCommand(),
			RmCommand(),
		},
	}
}

func addrFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "addr",
		Usage:   "server address (ip:port)",
		EnvVars: []string{"KVS_ADDR"},
		Value:   DefaultAddr,
	}
}

func dial(c *cli.Context) (*client.Client, error) {
	return client.Dial(c.String("addr"))
}

// SetCommand stores a key-value pair.
func SetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "store a key-value pair",
		ArgsUsage: "<key> <value>",
		Flags:     []cli.Flag{addrFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return cli.Exit("usage: kvs-client set <key> <value>", 1)
			}

			cl, err := dial(c)
			if err != nil {
				return err
			}
			defer cl.Close()

			return cl.Set(c.Args().Get(0), c.Args().Get(1))
		},
	}
}

// GetCommand fetches the value for a key.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "fetch the value for a key",
		ArgsUsage: "<key>",
		Flags:     []cli.Flag{addrFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("usage: kvs-client get <key>", 1)
			}

			cl, err := dial(c)
			if err != nil {
				return err
			}
			defer cl.Close()

			value, ok, err := cl.Get(c.Args().Get(0))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(c.App.Writer, "Key not found")
				return nil
			}
			fmt.Fprintln(c.App.Writer, value)
			return nil
		},
	}
}

// RmCommand removes a key.
func RmCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "remove a key",
		ArgsUsage: "<key>",
		Flags:     []cli.Flag{addrFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("usage: kvs-client rm <key>", 1)
			}

			cl, err := dial(c)
			if err != nil {
				return err
			}
			defer cl.Close()

			err = cl.Remove(c.Args().Get(0))
			if errors.Is(err, engine.ErrKeyNotFound) {
				return cli.Exit("Key not found", 1)
			}
			return err
		},
	}
}
