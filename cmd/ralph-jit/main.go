package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sys/cpu"

	"github.com/raymyers/ralph-jit/pkg/bytecode"
	"github.com/raymyers/ralph-jit/pkg/config"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

var version = "0.1.0"

// Code generation flags; they override the config file when set
var (
	modeFlag   string
	fpFlag     string
	maxStack   int
	configPath string
	verifyFlag bool
)

// Output flags
var (
	dAsm      bool
	traceFlag bool
	watchFlag bool
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	// Accept the single-dash -dasm spelling
	rootCmd.SetArgs(normalizeFlags(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

// shortFlags maps single-dash spellings to their pflag form. -m32 and
// -m64 need no entry: pflag reads them as the -m shorthand.
var shortFlags = map[string]string{
	"-dasm":  "--dasm",
	"-trace": "--trace",
}

// normalizeFlags rewrites the single-dash flags in shortFlags
func normalizeFlags(args []string) []string {
	result := make([]string, len(args))
	for i, arg := range args {
		if long, ok := shortFlags[arg]; ok {
			result[i] = long
		} else {
			result[i] = arg
		}
	}
	return result
}

// underscoreFlags lets --max_stack stand for --max-stack
func underscoreFlags(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ralph-jit [file]",
		Short: "ralph-jit compiles stack bytecode to x86 assembly",
		Long: `ralph-jit reads methods written in a small stack bytecode assembly
and compiles each one to 32-bit or 64-bit x86 code, tracking operand
stack values in registers, frame slots and the x87 stack.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				cmd.Help()
				return nil
			}
			filename := args[0]
			cfg, err := loadConfig(cmd)
			if err != nil {
				fmt.Fprintf(errOut, "ralph-jit: %v\n", err)
				return err
			}
			if watchFlag {
				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
				defer stop()
				err = watchFile(ctx, filename, func() {
					if err := compileFile(filename, cfg, out, errOut); err != nil {
						fmt.Fprintf(errOut, "ralph-jit: %s: %v\n", filename, err)
					}
				})
				if err != nil {
					fmt.Fprintf(errOut, "ralph-jit: %v\n", err)
				}
				return err
			}
			if err := compileFile(filename, cfg, out, errOut); err != nil {
				fmt.Fprintf(errOut, "ralph-jit: %s: %v\n", filename, err)
				return err
			}
			return nil
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	addConfigFlags(rootCmd.PersistentFlags())
	rootCmd.Flags().BoolVarP(&dAsm, "dasm", "", false, "Dump assembly to <file>.s and stdout")
	rootCmd.Flags().BoolVar(&traceFlag, "trace", false, "Log flushes and spills to stderr")
	rootCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Recompile whenever the file changes")
	rootCmd.SetGlobalNormalizationFunc(underscoreFlags)

	rootCmd.AddCommand(newReplCmd(out, errOut))
	rootCmd.AddCommand(newInfoCmd(out))
	return rootCmd
}

func addConfigFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&modeFlag, "mode", "m", "32", "Code mode: 32 or 64")
	fs.StringVar(&fpFlag, "fp", "fpu", "Floating point backend: fpu, sse or auto")
	fs.IntVar(&maxStack, "max-stack", 0, "Override the declared operand stack depth")
	fs.StringVarP(&configPath, "config", "c", "", "Read settings from a yaml file")
	fs.BoolVar(&verifyFlag, "verify", false, "Check item state after every transition")
}

// loadConfig reads the config file, if any, and applies the flags that
// were set on the command line
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Mode = modeFlag
	}
	if flags.Changed("fp") {
		cfg.FP = fpFlag
	}
	if flags.Changed("max-stack") {
		cfg.MaxStack = maxStack
	}
	if flags.Changed("verify") {
		cfg.Verify = verifyFlag
	}
	if traceFlag {
		cfg.Trace = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// compileFile compiles every method of a file. With --dasm the listing
// goes to <file>.s and to out; otherwise a summary is written to errOut.
func compileFile(filename string, cfg *config.Config, out, errOut io.Writer) error {
	content, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	results, err := bytecode.CompileAll(string(content), cfg)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Trace != "" {
			fmt.Fprint(errOut, r.Trace)
		}
	}

	if !dAsm {
		var flushes, spills int
		for _, r := range results {
			flushes += r.Stats.Flushes
			spills += r.Stats.Spills
		}
		fmt.Fprintf(errOut, "ralph-jit: %s: compiled %d methods (%d flushes, %d spills)\n",
			filename, len(results), flushes, spills)
		return nil
	}

	outputFilename := asmOutputFilename(filename)
	outFile, err := os.Create(outputFilename)
	if err != nil {
		return err
	}
	defer outFile.Close()
	printResults(outFile, results)
	printResults(out, results)
	return nil
}

func printResults(w io.Writer, results []*bytecode.Result) {
	p := x86.NewPrinter(w)
	for _, r := range results {
		p.PrintFunction(r.Name, r.Mode, r.Code)
	}
}

// asmOutputFilename returns the output filename for -dasm
func asmOutputFilename(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ".s"
}

// watchFile calls fn once and then after every change to filename until
// ctx is done. Bursts of events are coalesced. It fails once the file
// can no longer be watched, e.g. after it was deleted.
func watchFile(ctx context.Context, filename string, fn func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(filename); err != nil {
		return err
	}
	fn()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-watcher.Errors:
			return err
		case <-watcher.Events:
			// editors write in several steps; wait for the file to settle
			settle := time.After(10 * time.Millisecond)
		drain:
			for {
				select {
				case <-watcher.Events:
				case <-settle:
					break drain
				}
			}
			fn()
			// a rename replaces the watched inode
			if err := watcher.Add(filename); err != nil {
				return fmt.Errorf("watch %s: %w", filename, err)
			}
		}
	}
}

func newInfoCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the host CPU features used to pick a backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			auto := *cfg
			auto.FP = config.FPAuto
			backend, _ := auto.Backend(nil)
			fmt.Fprintf(out, "arch:\t%s\n", runtime.GOARCH)
			fmt.Fprintf(out, "sse2:\t%v\n", cpu.X86.HasSSE2)
			fmt.Fprintf(out, "sse4.1:\t%v\n", cpu.X86.HasSSE41)
			fmt.Fprintf(out, "avx2:\t%v\n", cpu.X86.HasAVX2)
			fmt.Fprintf(out, "mode:\t%s\n", cfg.Mode)
			fmt.Fprintf(out, "fp:\t%s (auto picks %s)\n", cfg.FP, backend)
			return nil
		},
	}
}

func newReplCmd(out, errOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Compile bytecode interactively, one instruction at a time",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			l, err := readline.NewEx(&readline.Config{
				Prompt:            "jit> ",
				HistoryFile:       filepath.Join(os.TempDir(), ".ralph-jit-history"),
				InterruptPrompt:   "^C",
				EOFPrompt:         "exit",
				HistorySearchFold: true,
				Stdout:            out,
				Stderr:            errOut,
			})
			if err != nil {
				return err
			}
			defer l.Close()
			l.CaptureExitSignal()

			s := newSession(cfg, out)
			for {
				line, err := l.Readline()
				if err == readline.ErrInterrupt {
					if len(line) == 0 {
						return nil
					}
					continue
				} else if err == io.EOF {
					return nil
				} else if err != nil {
					return err
				}
				if s.handle(line) {
					return nil
				}
			}
		},
	}
}
