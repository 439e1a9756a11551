package files

import (
	"context"
	"os/exec"
	"runtime"

	"github.com/ad-tracker/upload-scheduler-go/pkg/logger"
	"go.uber.org/zap"
)

// Opener launches the platform's default handler for a file.
type Opener interface {
	Open(ctx context.Context, path, mimeType string) error
}

// CommandOpener shells out to open, xdg-open or rundll32 depending on the OS.
type CommandOpener struct{}

// Open starts the handler and does not wait for it to exit.
func (CommandOpener) Open(ctx context.Context, path, mimeType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}

	logger.Log.Debug("Opening file externally",
		zap.String("path", path),
		zap.String("mimeType", mimeType),
		zap.String("command", cmd.Path),
	)

	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait() //nolint:errcheck // the handler outlives the request
	return nil
}
