package infrastructure

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/yourusername/iwara-dl-go/internal/domain"
	"go.uber.org/zap"
)

// NotificationService sends desktop notifications about batch runs
type NotificationService struct {
	config *domain.NotificationConfig
	logger *zap.Logger
	run    func(name string, args ...string) error
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		config: config,
		logger: logger,
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
	}
}

// Send sends a notification
func (n *NotificationService) Send(title, message string) error {
	if n == nil || n.config == nil || !n.config.Enabled {
		return nil
	}

	switch n.config.Method {
	case "osascript":
		return n.sendOSAScript(title, message)
	case "notify-send":
		return n.sendNotifySend(title, message)
	default:
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}
}

// sendOSAScript sends notification using macOS osascript
func (n *NotificationService) sendOSAScript(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	if n.config.Sound {
		script += ` sound name "Glass"`
	}
	return n.exec("osascript", "-e", script)
}

// sendNotifySend sends notification using Linux notify-send
func (n *NotificationService) sendNotifySend(title, message string) error {
	return n.exec("notify-send", "--app-name=iwara-dl", title, message)
}

func (n *NotificationService) exec(name string, args ...string) error {
	if err := n.run(name, args...); err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("method", name),
			zap.String("command", commandLine(name, args...)),
			zap.Error(err))
		return err
	}
	n.logger.Debug("Notification sent", zap.String("method", name))
	return nil
}

// NotifyRunFinished reports the totals of a finished batch run
func (n *NotificationService) NotifyRunFinished(succeeded, failed, abandoned int) {
	title := "Download Run Finished"
	message := fmt.Sprintf("%d downloaded, %d failed", succeeded, failed)
	if abandoned > 0 {
		message += fmt.Sprintf(", %d gave up after retries", abandoned)
	}
	n.Send(title, message)
}

// NotifyVideoFailed reports a video that will not be retried
func (n *NotificationService) NotifyVideoFailed(videoID, title string, err error) {
	label := videoID
	if title != "" {
		label = truncateString(title, 30)
	}
	message := fmt.Sprintf("Failed: %s", label)
	if err != nil {
		message += ": " + truncateString(err.Error(), 60)
	}
	n.Send("Download Failed", message)
}

// truncateString truncates a string to the specified number of runes
func truncateString(s string, maxLen int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= maxLen {
		return string(runes)
	}
	return string(runes[:maxLen]) + "..."
}

// shellSpecial lists the characters that make an argument need quoting in a logged command
const shellSpecial = " \t'\"$`\\!*?[](){}|;<>&~#%\n\r"

// quoteArg quotes s for display in a shell command line
func quoteArg(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, shellSpecial) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// commandLine renders a command and its arguments for logs. It is never executed.
func commandLine(name string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quoteArg(name))
	for _, arg := range args {
		parts = append(parts, quoteArg(arg))
	}
	return strings.Join(parts, " ")
}
