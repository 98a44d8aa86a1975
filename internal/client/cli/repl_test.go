package cli

import (
	"bufio"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	loggedIn bool
	calls    []string
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) Login(ctx context.Context) error {
	f.calls = append(f.calls, "login")
	f.loggedIn = true
	return nil
}
func (f *fakeExec) Refresh(ctx context.Context) error {
	f.calls = append(f.calls, "refresh")
	return nil
}
func (f *fakeExec) Logout(ctx context.Context) error {
	f.calls = append(f.calls, "logout")
	f.loggedIn = false
	return nil
}
func (f *fakeExec) LogoutAll(ctx context.Context) error {
	f.calls = append(f.calls, "logout-all")
	f.loggedIn = false
	return nil
}
func (f *fakeExec) Sessions(ctx context.Context) error {
	f.calls = append(f.calls, "sessions")
	return nil
}
func (f *fakeExec) Ping(ctx context.Context) error {
	f.calls = append(f.calls, "ping")
	return nil
}

func captureOutput(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	origPrint := printlnFn
	printlnFn = func(a ...any) (int, error) {
		parts := make([]string, 0, len(a))
		for _, v := range a {
			if s, ok := v.(string); ok {
				parts = append(parts, s)
			}
		}
		lines = append(lines, strings.Join(parts, " "))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = origPrint })
	return &lines
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	out := captureOutput(t)

	input := strings.Join([]string{
		"",
		"help",
		"login",
		"help",
		"refresh",
		"sessions",
		"ping",
		"logout",
		"login",
		"logout-all",
		"bogus",
		"exit",
		"login",
	}, "\n") + "\n"

	f := &fakeExec{}
	runREPL(context.Background(), f, func() string { return "guest" }, bufio.NewReader(strings.NewReader(input)))

	assert.Equal(t, []string{"login", "refresh", "sessions", "ping", "logout", "login", "logout-all"}, f.calls)
	assert.Contains(t, *out, "Available commands: login, ping, exit")
	assert.Contains(t, *out, "Available commands: refresh, sessions, logout, logout-all, ping, exit")
	assert.Contains(t, *out, "Unknown command: bogus")
	assert.Contains(t, *out, "Bye!")
}

func TestRunREPL_StopsOnEOFAndCancel(t *testing.T) {
	captureOutput(t)

	f := &fakeExec{}
	runREPL(context.Background(), f, func() string { return "" }, bufio.NewReader(strings.NewReader("ping")))
	assert.Equal(t, []string{"ping"}, f.calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f = &fakeExec{}
	runREPL(ctx, f, func() string { return "" }, bufio.NewReader(strings.NewReader("ping\n")))
	assert.Empty(t, f.calls)
}
