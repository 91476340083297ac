package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/chaindb/internal/config"
	"github.com/roach88/chaindb/internal/engine"
	"github.com/roach88/chaindb/internal/ir"
	"github.com/roach88/chaindb/internal/journal"
)

// instance is an engine restored from the journal with its Run loop
// started. Every command that makes calls opens one and closes it before
// returning.
type instance struct {
	cfg     *config.Config
	journal *journal.Journal
	engine  *engine.Engine
	cancel  context.CancelFunc
	done    chan error
}

// openInstance loads the config, opens the journal and replays it into a
// fresh engine.
func openInstance(ctx context.Context, opts *RootOptions) (*instance, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	slog.Debug("opening journal", "path", opts.Journal)
	j, err := journal.Open(opts.Journal)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}

	eng := engine.New(cfg.Engine(), j)
	n, err := eng.Restore(ctx)
	if err != nil {
		j.Close()
		if engine.IsReplayError(err) {
			return nil, WrapExitError(ExitFailure, "journal replay diverged", err)
		}
		return nil, WrapExitError(ExitCommandError, "failed to restore journal", err)
	}
	slog.Debug("journal restored", "calls", n, "seq", eng.Seq())

	runCtx, cancel := context.WithCancel(context.Background())
	in := &instance{
		cfg:     cfg,
		journal: j,
		engine:  eng,
		cancel:  cancel,
		done:    make(chan error, 1),
	}
	go func() { in.done <- eng.Run(runCtx) }()
	return in, nil
}

// Close stops the engine, waits for its loop and closes the journal.
func (in *instance) Close() error {
	in.engine.Stop()
	in.cancel()
	if err := <-in.done; err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("engine loop ended with error", "error", err)
	}
	return in.journal.Close()
}

// caller resolves the --caller flag.
func (in *instance) caller(opts *RootOptions) (ir.Address, error) {
	addr, err := in.account(opts.Caller)
	if err != nil {
		return ir.Address{}, WrapExitError(ExitCommandError, "invalid --caller", err)
	}
	return addr, nil
}

// account resolves a configured account name or a hex address.
func (in *instance) account(s string) (ir.Address, error) {
	switch strings.ToLower(s) {
	case "admin":
		return in.cfg.Admin, nil
	case "factory":
		return in.cfg.Factory, nil
	case "treasury":
		return in.cfg.Treasury, nil
	}
	return ir.ParseAddress(s)
}

// accountArg resolves an account-valued argument to its hex form.
func (in *instance) accountArg(name, s string) (ir.IRString, error) {
	addr, err := in.account(s)
	if err != nil {
		return "", NewExitError(ExitCommandError, fmt.Sprintf("%s: %v", name, err))
	}
	return ir.IRString(addr.Hex()), nil
}

// execute runs one call and writes its receipt. A call that fails inside
// the engine ends the command with ExitFailure after its receipt is
// written.
func (in *instance) execute(cmd *cobra.Command, opts *RootOptions, call engine.Call) (engine.Receipt, error) {
	if call.GasLimit == 0 {
		call.GasLimit = opts.GasLimit
	}
	slog.Debug("executing", "action", call.Action, "database", call.Database, "caller", call.Caller.Hex())

	receipt, err := in.engine.Execute(cmd.Context(), call)
	if receipt.Completion.OutputCase == "" {
		// Nothing ran: unknown action, stopped engine or cancelled context.
		if err == nil {
			err = errors.New("call produced no completion")
		}
		code := ExitFailure
		if ir.IsCode(err, ir.ErrUnknownAction) {
			code = ExitCommandError
		}
		return receipt, WrapExitError(code, fmt.Sprintf("%s failed", call.Action), err)
	}

	formatter := newFormatter(cmd, opts)
	if werr := formatter.Receipt(receipt); werr != nil {
		return receipt, werr
	}
	if err != nil {
		return receipt, WrapExitError(ExitFailure, fmt.Sprintf("%s failed", call.Action), err)
	}
	return receipt, nil
}

// withInstance opens an instance, resolves the caller and runs fn.
func withInstance(cmd *cobra.Command, opts *RootOptions, fn func(in *instance, caller ir.Address) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
		cmd.SetContext(ctx)
	}
	in, err := openInstance(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := in.Close(); cerr != nil {
			slog.Error("error closing journal", "error", cerr)
		}
	}()

	caller, err := in.caller(opts)
	if err != nil {
		return err
	}
	return fn(in, caller)
}

func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
