package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/viper"

	"github.com/geeth24/xpool-agent/pkg/chat"
	"github.com/geeth24/xpool-agent/pkg/config"
	"github.com/geeth24/xpool-agent/pkg/controllers"
	"github.com/geeth24/xpool-agent/pkg/logger"
	"github.com/geeth24/xpool-agent/pkg/stream"
	"github.com/geeth24/xpool-agent/pkg/tasks"
	"github.com/geeth24/xpool-agent/pkg/xpool"
)

var (
	userStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
	toolStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	taskStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// app wires the controller, task registry and session history together for
// the CLI commands.
type app struct {
	cfg        *config.Config
	controller *controllers.ConversationController
	registry   *tasks.Registry
	history    *chat.History
}

func newApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if err := logger.Init(); err != nil {
		return nil, err
	}

	client := xpool.NewClientWithTimeout(cfg.Server.URL, cfg.Server.Timeout)
	registry := tasks.NewRegistry(client, cfg.Tasks.PollInterval)
	controller := controllers.NewConversationController(client, registry)

	a := &app{
		cfg:        cfg,
		controller: controller,
		registry:   registry,
	}

	if cfg.History.Persist {
		history, err := chat.NewHistory(cfg.History.File)
		if err != nil {
			return nil, err
		}
		a.history = history

		if viper.GetBool("continue") {
			if err := controller.Restore(history.GetMessages()); err != nil {
				return nil, err
			}
		}
	}

	return a, nil
}

func (a *app) Close() {
	a.registry.Close()
	_ = logger.Close()
}

// RunTurn submits one turn, streams the reply to stdout and, unless
// disabled, waits for spawned background tasks to finish.
func (a *app) RunTurn(ctx context.Context, displayText, wireText string) error {
	fmt.Println(userStyle.Render("You: ") + displayText)

	a.controller.SetOnEvent(func(event stream.Event) {
		switch event.Type {
		case stream.EventContent:
			fmt.Print(event.Content)
		case stream.EventToolStart:
			for _, name := range event.Tools {
				fmt.Println(toolStyle.Render(fmt.Sprintf("[tool] %s running...", name)))
			}
		case stream.EventToolResult:
			fmt.Println(toolStyle.Render(fmt.Sprintf("[tool] %s finished", event.Tool)))
		}
	})

	a.registry.SetOnUpdate(func(task tasks.TrackedTask) {
		label := task.Progress.StageLabel
		if label == "" {
			label = string(task.Status)
		}
		fmt.Println(taskStyle.Render(
			fmt.Sprintf("[task %s] %s (%d%%)", task.ID, label, task.Progress.Percent)))
		if task.Status == tasks.StatusFailed && task.Error != "" {
			fmt.Println(errorStyle.Render(fmt.Sprintf("[task %s] %s", task.ID, task.Error)))
		}
	})

	err := a.controller.Submit(ctx, displayText, wireText)
	fmt.Println()
	if err != nil {
		return err
	}

	if a.history != nil {
		if saveErr := a.history.Replace(a.controller.Messages()); saveErr != nil {
			logger.Warn("failed to save session history: %v", saveErr)
		}
	}

	if viper.GetBool("no_wait") {
		return nil
	}
	return a.waitForTasks(ctx)
}

// waitForTasks blocks until every tracked task reaches a terminal status or
// the configured wait timeout expires. The poll loops themselves keep their
// own schedule; this only watches the registry.
func (a *app) waitForTasks(ctx context.Context) error {
	if a.registry.Active() == 0 {
		return nil
	}

	fmt.Println(taskStyle.Render(
		fmt.Sprintf("waiting for %d background task(s)...", a.registry.Active())))

	timeout := a.cfg.Tasks.WaitTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(250 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("timed out after %s waiting for background tasks", timeout)
		case <-tick.C:
			if a.registry.Active() == 0 {
				return nil
			}
		}
	}
}
