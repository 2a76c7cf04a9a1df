package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tessel-lang/tessel/internal/ast"
	"github.com/tessel-lang/tessel/internal/lower"
	"github.com/tessel-lang/tessel/internal/store"
)

// LowerOptions holds flags for the lower command.
type LowerOptions struct {
	*RootOptions
	Output string   // output file path
	Cache  string   // artifact cache database path
	Args   []string // name=value pairs for $name references
}

// LowerResult is the success payload of the lower command.
type LowerResult struct {
	ModuleID   string `json:"module_id"`
	ScriptHash string `json:"script_hash"`
	IR         string `json:"ir"`
	CacheHit   bool   `json:"cache_hit"`
}

// NewLowerCommand creates the lower command.
func NewLowerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LowerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "lower <script.yaml>",
		Short: "Lower a parse-tree document to SSA IR",
		Long: `Lower an externally parsed script to SSA, region-structured IR.

The input is a YAML parse-tree document produced by the external
parser. The output is the deterministic textual form of the lowered
module.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLower(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().StringVar(&opts.Cache, "cache", "", "artifact cache database path")
	cmd.Flags().StringArrayVar(&opts.Args, "arg", nil, "script argument as name=value (repeatable)")

	return cmd
}

func runLower(opts *LowerOptions, scriptPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	data, err := os.ReadFile(scriptPath)
	if err != nil {
		return outputLowerError(formatter, "READ_FAILED", fmt.Sprintf("reading script: %v", err))
	}
	hash := store.ScriptHash(data)
	formatter.VerboseLog("Script hash: %s", hash)

	var st *store.Store
	if opts.Cache != "" {
		st, err = store.Open(opts.Cache)
		if err != nil {
			return outputLowerError(formatter, "CACHE_FAILED", fmt.Sprintf("opening cache: %v", err))
		}
		defer st.Close()

		if a, ok, err := st.GetArtifact(cmd.Context(), hash); err != nil {
			return outputLowerError(formatter, "CACHE_FAILED", fmt.Sprintf("reading cache: %v", err))
		} else if ok {
			formatter.VerboseLog("Cache hit for %s", scriptPath)
			return outputLowerSuccess(formatter, LowerResult{
				ModuleID:   a.ModuleID,
				ScriptHash: hash,
				IR:         a.IRText,
				CacheHit:   true,
			}, opts.Output)
		}
	}

	args, err := parseScriptArgs(opts.Args)
	if err != nil {
		return outputLowerError(formatter, "BAD_ARG", err.Error())
	}

	script, err := ast.DecodeScript(scriptPath, data)
	if err != nil {
		return outputLowerError(formatter, "PARSE_TREE_INVALID", err.Error())
	}

	mod, lw, err := lower.Script(script, lower.Options{
		Args:     args,
		Importer: newFileImporter(filepath.Dir(scriptPath)),
	})
	if err != nil {
		return outputLoweringFailure(formatter, err)
	}
	for _, d := range lw.Diags {
		formatter.VerboseLog("%s: warning: %s", d.Pos, d.Message)
	}

	result := LowerResult{
		ModuleID:   mod.ID,
		ScriptHash: hash,
		IR:         mod.String(),
	}
	if st != nil {
		if err := st.PutArtifact(cmd.Context(), store.Artifact{
			ScriptHash: hash,
			ModuleID:   mod.ID,
			IRText:     result.IR,
		}); err != nil {
			return outputLowerError(formatter, "CACHE_FAILED", fmt.Sprintf("writing cache: %v", err))
		}
		formatter.VerboseLog("Cached IR under %s", hash)
	}
	return outputLowerSuccess(formatter, result, opts.Output)
}

// parseScriptArgs turns repeated name=value flags into the argument
// map consulted by $name references.
func parseScriptArgs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	args := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --arg %q: expected name=value", p)
		}
		args[name] = value
	}
	return args, nil
}

func outputLowerSuccess(formatter *OutputFormatter, result LowerResult, outputFile string) error {
	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(result.IR), 0644); err != nil {
			return outputLowerError(formatter, "WRITE_FAILED", fmt.Sprintf("writing output file: %v", err))
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprint(formatter.Writer, result.IR)
	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote IR to %s\n", outputFile)
	}
	return nil
}

// outputLowerError reports a command-level failure (exit code 2).
func outputLowerError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputLoweringFailure reports a script-level lowering failure (exit
// code 1), carrying the structured error's code and position.
func outputLoweringFailure(formatter *OutputFormatter, err error) error {
	var le *lower.Error
	if errors.As(err, &le) {
		if formatter.Format != "json" && le.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n", le.Pos.Filename, le.Pos.Line, le.Pos.Column)
		}
		_ = formatter.Error(string(le.Code), le.Message, le.Component)
		return WrapExitError(ExitFailure, le.Error(), nil)
	}
	_ = formatter.Error("LOWERING", err.Error(), nil)
	return WrapExitError(ExitFailure, err.Error(), nil)
}
