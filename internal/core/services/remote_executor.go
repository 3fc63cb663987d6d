package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cruxpanel/backend/internal/core/ports"
	"github.com/cruxpanel/backend/internal/infrastructure/logger"
	"github.com/cruxpanel/backend/internal/infrastructure/remote"
	"github.com/google/uuid"
)

// RemoteExecutor runs operations on a managed server over SSH: the
// operation script is uploaded over SFTP, executed with the target as
// its argument, and its output streamed back line by line.
type RemoteExecutor struct {
	client    *remote.SSHClient
	scriptDir string
	logger    *logger.Logger
}

func NewRemoteExecutor(client *remote.SSHClient, scriptDir string, log *logger.Logger) *RemoteExecutor {
	return &RemoteExecutor{client: client, scriptDir: scriptDir, logger: log}
}

func (e *RemoteExecutor) Run(ctx context.Context, spec ports.OperationSpec, emit func(line string)) error {
	script := filepath.Join(e.scriptDir, spec.Kind, spec.Action)
	if info, err := os.Stat(script); err != nil || info.IsDir() {
		return fmt.Errorf("%w: %s/%s", ErrOperationUnknown, spec.Kind, spec.Action)
	}

	conn, err := e.client.ConnectWithRetry()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOperationFailed, err)
	}
	defer conn.Close()

	remotePath := "/tmp/crux-op-" + uuid.New().String()
	if err := e.client.Upload(conn, script, remotePath); err != nil {
		return fmt.Errorf("%w: %v", ErrOperationFailed, err)
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = e.client.Execute(cleanupCtx, conn, "rm -f "+remotePath)
	}()

	chmodCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if _, err := e.client.Execute(chmodCtx, conn, "chmod +x "+remotePath); err != nil {
		return fmt.Errorf("%w: %v", ErrOperationFailed, err)
	}

	e.logger.Infow("remote_operation_started", "kind", spec.Kind, "action", spec.Action, "target", spec.Target)

	cmd := fmt.Sprintf("%s %s", remotePath, shellQuote(spec.Target))
	for k, v := range spec.Options {
		key := "CRUX_OPT_" + strings.ToUpper(strings.ReplaceAll(k, "-", "_"))
		cmd = fmt.Sprintf("%s=%s %s", key, shellQuote(v), cmd)
	}
	cmd += " 2>&1"

	if err := e.client.Stream(ctx, conn, cmd, emit); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrOperationFailed, err)
	}
	return nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
