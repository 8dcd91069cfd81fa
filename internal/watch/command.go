package watch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"thsrbook/internal/export"
	"thsrbook/internal/logger"
	"thsrbook/internal/models"
)

// Command runs an external scraper through the shell and reads its CSV. The
// file is read even when the scraper fails, since earlier rounds may have
// filled it.
type Command struct {
	Line    string
	CSVPath string
}

func (c Command) Fetch(ctx context.Context, proxy string) ([]models.TrainOffer, error) {
	logger.Info("running scraper: %s", c.Line)
	cmd := shell(ctx, c.Line)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if proxy != "" {
		cmd.Env = append(os.Environ(), "THSR_PROXY="+proxy)
	}
	runErr := cmd.Run()
	if runErr != nil {
		logger.Warn("scraper exited with error: %v", runErr)
	}

	offers, err := export.Read(c.CSVPath)
	if err != nil {
		return offers, fmt.Errorf("read %s: %w", c.CSVPath, err)
	}
	if runErr != nil {
		return offers, fmt.Errorf("scraper: %w", runErr)
	}
	return offers, nil
}

func shell(ctx context.Context, line string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", line)
	}
	return exec.CommandContext(ctx, "sh", "-c", line)
}
