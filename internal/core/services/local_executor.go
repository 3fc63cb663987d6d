package services

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cruxpanel/backend/internal/core/ports"
	"github.com/cruxpanel/backend/internal/infrastructure/logger"
)

// LocalExecutor runs operations as local processes. Each operation maps
// to one executable at <script_dir>/<kind>/<action>, invoked with the
// target as its single argument; options are passed through the
// environment as CRUX_OPT_<KEY>.
type LocalExecutor struct {
	scriptDir string
	logger    *logger.Logger
}

func NewLocalExecutor(scriptDir string, log *logger.Logger) *LocalExecutor {
	return &LocalExecutor{scriptDir: scriptDir, logger: log}
}

func (e *LocalExecutor) Run(ctx context.Context, spec ports.OperationSpec, emit func(line string)) error {
	script := filepath.Join(e.scriptDir, spec.Kind, spec.Action)
	if info, err := os.Stat(script); err != nil || info.IsDir() {
		e.logger.Warnw("operation_script_missing", "kind", spec.Kind, "action", spec.Action, "path", script)
		return fmt.Errorf("%w: %s/%s", ErrOperationUnknown, spec.Kind, spec.Action)
	}

	cmd := exec.CommandContext(ctx, script, spec.Target)
	// Orphaned children can keep the output pipe open after the script
	// itself is killed; don't let Wait hang on them.
	cmd.WaitDelay = 5 * time.Second
	cmd.Env = os.Environ()
	for k, v := range spec.Options {
		key := "CRUX_OPT_" + strings.ToUpper(strings.ReplaceAll(k, "-", "_"))
		cmd.Env = append(cmd.Env, key+"="+v)
	}

	// Stdout and stderr interleave on one pipe so subscribers see output
	// in the order the operation produced it.
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		return fmt.Errorf("%w: %v", ErrOperationFailed, err)
	}

	e.logger.Infow("operation_started", "kind", spec.Kind, "action", spec.Action, "target", spec.Target, "pid", cmd.Process.Pid)

	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			emit(scanner.Text())
		}
	}()

	err := cmd.Wait()
	pw.Close()
	<-done
	pr.Close()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOperationFailed, err)
	}
	return nil
}
