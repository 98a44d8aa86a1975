package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/client/client"
	"github.com/dmitrijs2005/tokenkeeper/internal/common"
)

func (a *App) Login(ctx context.Context) error {

	email, err := GetSimpleText(a.reader, "-Enter email", a.out)
	if err != nil {
		return a.fail("login", err)
	}

	password, err := GetPassword(a.out)
	if err != nil {
		return a.fail("login", err)
	}
	defer common.WipeByteArray(password)

	if err := a.client.Login(ctx, email, password); err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			fmt.Fprintln(a.out, "Login unsuccessful: invalid email or password")
			return err
		}
		return a.fail("login", err)
	}

	a.mu.Lock()
	a.email = email
	a.mu.Unlock()

	fmt.Fprintf(a.out, "Login successful, access token valid until %s\n", formatTime(a.client.Tokens().AccessTokenExpiresAt))
	return nil
}

func (a *App) Refresh(ctx context.Context) error {

	if err := a.client.Refresh(ctx); err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			fmt.Fprintln(a.out, "Session is no longer valid, please log in again")
			return err
		}
		return a.fail("refresh", err)
	}

	fmt.Fprintf(a.out, "Tokens refreshed, access token valid until %s\n", formatTime(a.client.Tokens().AccessTokenExpiresAt))
	return nil
}

func (a *App) Logout(ctx context.Context) error {

	err := a.client.Logout(ctx)
	if err != nil && !errors.Is(err, client.ErrNotFound) {
		return a.fail("logout", err)
	}

	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) LogoutAll(ctx context.Context) error {

	n, err := a.client.LogoutAll(ctx)
	if err != nil {
		return a.fail("logout-all", err)
	}

	fmt.Fprintf(a.out, "Logged out of %d session(s)\n", n)
	return nil
}

func (a *App) Sessions(ctx context.Context) error {

	sessions, err := a.client.Sessions(ctx)
	if err != nil {
		return a.fail("sessions", err)
	}

	if len(sessions) == 0 {
		fmt.Fprintln(a.out, "No active sessions")
		return nil
	}

	for _, s := range sessions {
		fmt.Fprintf(a.out, "%-12s created %s from %s, expires %s\n",
			s.TokenHint, formatTime(s.CreatedOn), s.CreatedByIP, formatTime(s.ExpiresOn))
	}
	return nil
}

func (a *App) Ping(ctx context.Context) error {

	if err := a.client.Ping(ctx); err != nil {
		a.setMode(ModeOffline)
		return a.fail("ping", err)
	}

	a.setMode(ModeOnline)
	fmt.Fprintln(a.out, "OK")
	return nil
}

func (a *App) fail(op string, err error) error {
	fmt.Fprintf(a.out, "%s failed: %v\n", op, err)
	return err
}

func formatTime(t time.Time) string {
	return t.Local().Format(time.DateTime)
}
