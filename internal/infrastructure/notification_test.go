package infrastructure

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yourusername/iwara-dl-go/internal/domain"
	"go.uber.org/zap"
)

type recordedCommand struct {
	name string
	args []string
}

func newTestNotifier(config *domain.NotificationConfig) (*NotificationService, *[]recordedCommand) {
	var calls []recordedCommand
	n := NewNotificationService(config, zap.NewNop())
	n.run = func(name string, args ...string) error {
		calls = append(calls, recordedCommand{name: name, args: args})
		return nil
	}
	return n, &calls
}

func TestNotificationService_Disabled(t *testing.T) {
	n, calls := newTestNotifier(&domain.NotificationConfig{Enabled: false, Method: "notify-send"})
	n.NotifyRunFinished(1, 2, 0)
	assert.Empty(t, *calls)
}

func TestNotificationService_NotifySend(t *testing.T) {
	n, calls := newTestNotifier(&domain.NotificationConfig{Enabled: true, Method: "notify-send"})
	n.NotifyRunFinished(3, 1, 1)

	if assert.Len(t, *calls, 1) {
		call := (*calls)[0]
		assert.Equal(t, "notify-send", call.name)
		assert.Contains(t, call.args, "Download Run Finished")
		assert.Contains(t, call.args, "3 downloaded, 1 failed, 1 gave up after retries")
	}
}

func TestNotificationService_OSAScriptQuotes(t *testing.T) {
	n, calls := newTestNotifier(&domain.NotificationConfig{Enabled: true, Method: "osascript"})
	n.NotifyVideoFailed("abc", `say "hi"`, errors.New("boom"))

	if assert.Len(t, *calls, 1) {
		assert.Equal(t, "osascript", (*calls)[0].name)
		assert.Contains(t, (*calls)[0].args[1], `\"hi\"`)
	}
}

func TestNotificationService_UnknownMethod(t *testing.T) {
	n, calls := newTestNotifier(&domain.NotificationConfig{Enabled: true, Method: "pigeon"})
	assert.NoError(t, n.Send("t", "m"))
	assert.Empty(t, *calls)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abc...", truncateString("abcdef", 3))
	assert.Equal(t, "日本...", truncateString("日本語", 2))
}

func TestCommandLine(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"notify-send", []string{"--app-name=iwara-dl", "Title"}, "notify-send --app-name=iwara-dl Title"},
		{"notify-send", []string{"Download Failed", ""}, "notify-send 'Download Failed' ''"},
		{"osascript", []string{"-e", `it's "done"`}, `osascript -e 'it'"'"'s "done"'`},
		{"echo", []string{"$HOME"}, "echo '$HOME'"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, commandLine(tt.name, tt.args...))
	}
}
