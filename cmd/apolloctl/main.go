// Command apolloctl is the administrator console for the APOLLO
// coordinator: a persistent REPL, in the style of the coordinator's own
// command set, that operates directly on the persisted topology,
// dictionary, directive, and credential files. It runs on the same host
// as apollod and shares apollod's working directory, so every command
// sees (and durably updates) the same on-disk state the daemon loads at
// startup.
//
// Unlike a one-shot CLI, apolloctl is one long-running process: it loads
// every manager once, requires a login before accepting any other
// command, and dispatches each subsequent line typed at its prompt
// against that same in-memory state. This is what lets `gate
// stage-plugin-deletion` and the `gate confirm` that follows it see the
// same staged action: the console holds one `gate.Gate` for the life of
// the session rather than reconstructing one (with no pending action)
// per invocation.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/jLSumner/apollo/internal/authstore"
	"github.com/jLSumner/apollo/internal/dictionary"
	"github.com/jLSumner/apollo/internal/directive"
	"github.com/jLSumner/apollo/internal/gate"
	"github.com/jLSumner/apollo/internal/logring"
	"github.com/jLSumner/apollo/internal/topology"
)

func main() {
	logDir := flag.String("log_dir", "logs", "coordinator log directory")
	securityCodesFile := flag.String("security_codes", "security_codes.txt", "privileged-action confirmation codes file")
	flag.Parse()

	console, err := newConsole(*logDir, *securityCodesFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	console.run(os.Stdin, os.Stdout)
}

// console holds every manager apolloctl acts on, loaded once at process
// start and shared by every command typed at the prompt for the life of
// the session. authenticated gates every command but login, help and
// exit/quit.
type console struct {
	auth   *authstore.Store
	topo   *topology.Manager
	dict   *dictionary.Manager
	engine *directive.Engine
	gate   *gate.Gate
	logDir string

	authenticated bool
}

func newConsole(logDir, securityCodesFile string) (*console, error) {
	auth, err := authstore.Load()
	if err != nil {
		return nil, err
	}
	topo, err := topology.Load()
	if err != nil {
		return nil, err
	}
	dict, err := dictionary.Load()
	if err != nil {
		return nil, err
	}
	engine, err := directive.Load()
	if err != nil {
		return nil, err
	}
	codes, err := gate.LoadSecurityCodes(securityCodesFile)
	if err != nil {
		return nil, err
	}
	return &console{
		auth:   auth,
		topo:   topo,
		dict:   dict,
		engine: engine,
		gate:   gate.New(codes, topo, dict, engine),
		logDir: logDir,
	}, nil
}

// run reads one command per line from r until EOF or "exit"/"quit",
// writing prompts and command output to w. No command but login and help
// runs until a login succeeds, matching the spec's requirement of a live
// session gated by login.
func (co *console) run(r io.Reader, w io.Writer) {
	app := co.buildApp(w)
	scanner := bufio.NewScanner(r)

	fmt.Fprintln(w, "APOLLO administrator console; type `login` to begin, `help` for commands, `exit` to quit.")
	for {
		fmt.Fprint(w, "apolloctl> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}

		fields := strings.Fields(line)
		if !co.authenticated && fields[0] != "login" && fields[0] != "help" {
			fmt.Fprintln(w, "not authenticated; run `login` first")
			continue
		}

		args := append([]string{"apolloctl"}, fields...)
		if err := app.Run(args); err != nil {
			fmt.Fprintln(w, err)
		}
	}
}

func (co *console) buildApp(w io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "apolloctl"
	app.Usage = "administer an APOLLO coordinator's topology, dictionary, and directives"
	app.Writer = w
	app.Commands = []cli.Command{
		co.loginCommand(),
		co.topologyCommand(),
		co.dictionaryCommand(),
		co.directiveCommand(),
		co.gateCommand(),
		co.logsCommand(),
	}
	return app
}

func (co *console) loginCommand() cli.Command {
	return cli.Command{
		Name:  "login",
		Usage: "authenticate as an administrator",
		Action: func(c *cli.Context) error {
			w := c.App.Writer
			reader := bufio.NewReader(os.Stdin)
			fmt.Fprint(w, "username: ")
			username, _ := reader.ReadString('\n')
			fmt.Fprint(w, "password: ")
			password, _ := reader.ReadString('\n')

			ok, busy := co.auth.TryVerify(strings.TrimSpace(username), strings.TrimSpace(password))
			if busy {
				return errors.New("system busy, try again")
			}
			if !ok {
				return errors.New("authentication failed")
			}
			co.authenticated = true
			fmt.Fprintln(w, "authenticated")
			return nil
		},
	}
}

func (co *console) topologyCommand() cli.Command {
	return cli.Command{
		Name:  "topology",
		Usage: "manage the plugin/subsection/entity hierarchy",
		Subcommands: []cli.Command{
			{
				Name:      "add-plugin",
				ArgsUsage: "PLUGIN_ID AUTH_KEY",
				Action: func(c *cli.Context) error {
					return co.topo.AddPlugin(c.Args().Get(0), c.Args().Get(1))
				},
			},
			{
				Name:      "add-subsection",
				ArgsUsage: "PLUGIN_ID SUBSECTION_ID AUTH_KEY",
				Action: func(c *cli.Context) error {
					return co.topo.AddSubsection(c.Args().Get(0), c.Args().Get(1), c.Args().Get(2))
				},
			},
			{
				Name:      "add-entity",
				ArgsUsage: "PLUGIN_ID_SUBSECTION_ID ENTITY_ID AUTH_KEY",
				Action: func(c *cli.Context) error {
					return co.topo.AddEntity(c.Args().Get(0), c.Args().Get(1), c.Args().Get(2))
				},
			},
			{
				Name:      "show",
				Usage:     "print the current topology",
				ArgsUsage: " ",
				Action: func(c *cli.Context) error {
					snap := co.topo.Snapshot()
					w := c.App.Writer
					for pluginID, plugin := range snap.Plugins {
						fmt.Fprintf(w, "%s (%s)\n", pluginID, plugin.AuthKey)
						for subID, sub := range plugin.Subsections {
							fmt.Fprintf(w, "  %s_%s (%s)\n", pluginID, subID, sub.AuthKey)
							for entID, ent := range sub.Entities {
								fmt.Fprintf(w, "    %s_%s_%s (%s)\n", pluginID, subID, entID, ent.AuthKey)
							}
						}
					}
					return nil
				},
			},
		},
	}
}

func (co *console) dictionaryCommand() cli.Command {
	return cli.Command{
		Name:  "dictionary",
		Usage: "manage per-plugin status codes and command templates",
		Subcommands: []cli.Command{
			{
				Name:      "add-status",
				ArgsUsage: "PLUGIN_ID STATUS_CODE",
				Action: func(c *cli.Context) error {
					return co.dict.AddStatusCode(c.Args().Get(0), c.Args().Get(1))
				},
			},
			{
				Name:      "add-command",
				ArgsUsage: "PLUGIN_ID KEY NAME PRIORITY [LEVEL]",
				Action: func(c *cli.Context) error {
					tmpl := dictionary.CommandTemplate{
						Name:     c.Args().Get(2),
						Priority: dictionary.Priority(c.Args().Get(3)),
					}
					if level := c.Args().Get(4); level != "" {
						n, err := strconv.Atoi(level)
						if err != nil {
							return err
						}
						tmpl.HasLevel = true
						tmpl.Level = n
					}
					return co.dict.AddCommandTemplate(c.Args().Get(0), c.Args().Get(1), tmpl)
				},
			},
			{
				Name:      "show",
				ArgsUsage: " ",
				Action: func(c *cli.Context) error {
					snap := co.dict.Snapshot()
					w := c.App.Writer
					for pluginID, pd := range snap.PluginDictionaries {
						fmt.Fprintf(w, "%s: status codes %v\n", pluginID, pd.StatusCodes)
						for key, tmpl := range pd.CommandTemplates {
							fmt.Fprintf(w, "  %s -> %s (%s)\n", key, tmpl.Name, tmpl.Priority)
						}
					}
					return nil
				},
			},
		},
	}
}

func (co *console) directiveCommand() cli.Command {
	return cli.Command{
		Name:  "directive",
		Usage: "manage if-then rules routing statuses to commands",
		Subcommands: []cli.Command{
			{
				Name:      "add-rule",
				ArgsUsage: "TARGET_ID IF_STATUS THEN_TARGET THEN_COMMAND_JSON",
				Action: func(c *cli.Context) error {
					rule := directive.Rule{
						IfStatusIs:        c.Args().Get(1),
						ThenCommandTarget: c.Args().Get(2),
						ThenCommandJSON:   c.Args().Get(3),
					}
					return co.engine.AddRule(c.Args().Get(0), rule)
				},
			},
		},
	}
}

func (co *console) gateCommand() cli.Command {
	return cli.Command{
		Name:  "gate",
		Usage: "stage and confirm privileged deletions",
		Subcommands: []cli.Command{
			{
				Name:      "stage-directive-deletion",
				ArgsUsage: "TARGET_ID IF_STATUS THEN_TARGET THEN_COMMAND_JSON",
				Action: func(c *cli.Context) error {
					rule := directive.Rule{
						IfStatusIs:        c.Args().Get(1),
						ThenCommandTarget: c.Args().Get(2),
						ThenCommandJSON:   c.Args().Get(3),
					}
					co.gate.Stage(gate.WipAction{Kind: gate.KindDirectiveDeletion, TargetID: c.Args().Get(0), Rule: rule})
					fmt.Fprintln(c.App.Writer, "staged; confirm with `gate confirm <code>`")
					return nil
				},
			},
			{
				Name:      "stage-plugin-deletion",
				ArgsUsage: "PLUGIN_ID",
				Action: func(c *cli.Context) error {
					co.gate.Stage(gate.WipAction{Kind: gate.KindPluginDeletion, PluginID: c.Args().Get(0)})
					fmt.Fprintln(c.App.Writer, "staged; confirm with `gate confirm <code>`")
					return nil
				},
			},
			{
				Name:      "stage-subsection-deletion",
				ArgsUsage: "PLUGIN_ID SUBSECTION_ID",
				Action: func(c *cli.Context) error {
					co.gate.Stage(gate.WipAction{Kind: gate.KindSubsectionDeletion, PluginID: c.Args().Get(0), SubsectionID: c.Args().Get(1)})
					fmt.Fprintln(c.App.Writer, "staged; confirm with `gate confirm <code>`")
					return nil
				},
			},
			{
				Name:      "stage-entity-deletion",
				ArgsUsage: "PLUGIN_ID SUBSECTION_ID ENTITY_ID",
				Action: func(c *cli.Context) error {
					co.gate.Stage(gate.WipAction{
						Kind:         gate.KindEntityDeletion,
						PluginID:     c.Args().Get(0),
						SubsectionID: c.Args().Get(1),
						EntityID:     c.Args().Get(2),
					})
					fmt.Fprintln(c.App.Writer, "staged; confirm with `gate confirm <code>`")
					return nil
				},
			},
			{
				Name:      "stage-statuscode-deletion",
				ArgsUsage: "PLUGIN_ID STATUS_CODE",
				Action: func(c *cli.Context) error {
					co.gate.Stage(gate.WipAction{Kind: gate.KindStatusCodeDeletion, PluginID: c.Args().Get(0), Code: c.Args().Get(1)})
					fmt.Fprintln(c.App.Writer, "staged; confirm with `gate confirm <code>`")
					return nil
				},
			},
			{
				Name:      "stage-commandcode-deletion",
				ArgsUsage: "PLUGIN_ID KEY",
				Action: func(c *cli.Context) error {
					co.gate.Stage(gate.WipAction{Kind: gate.KindCommandCodeDeletion, PluginID: c.Args().Get(0), Key: c.Args().Get(1)})
					fmt.Fprintln(c.App.Writer, "staged; confirm with `gate confirm <code>`")
					return nil
				},
			},
			{
				Name:      "cancel",
				ArgsUsage: " ",
				Action: func(c *cli.Context) error {
					co.gate.Cancel()
					fmt.Fprintln(c.App.Writer, "pending action cancelled")
					return nil
				},
			},
			{
				Name:      "confirm",
				ArgsUsage: "CODE",
				Action: func(c *cli.Context) error {
					return co.gate.Confirm(c.Args().Get(0))
				},
			},
		},
	}
}

func (co *console) logsCommand() cli.Command {
	return cli.Command{
		Name:  "logs",
		Usage: "show recent coordinator log lines",
		Flags: []cli.Flag{
			cli.IntFlag{Name: "n", Value: 100, Usage: "number of lines to show"},
		},
		Action: func(c *cli.Context) error {
			lines, err := logring.Tail(co.logDir, c.Int("n"))
			if err != nil {
				return err
			}
			w := c.App.Writer
			for _, line := range lines {
				fmt.Fprintln(w, line)
			}
			return nil
		},
	}
}
