package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

func (a *App) prompt() string {
	snap := a.coord.Snapshot()
	s := string(snap.Status)
	if snap.User != nil {
		s = snap.User.Email + " " + s
	}
	return fmt.Sprintf("authkit (%s)> ", s)
}

func (a *App) Root(ctx context.Context) {
	fmt.Println("authkit demo CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(a.prompt())
		if !scanner.Scan() {
			break
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			fmt.Println("Available commands: status, login, register, guest <persona>, profile, reset, clearerror, logout, exit")
		case "status":
			a.showStatus()
		case "login":
			a.login(ctx)
		case "register":
			a.register(ctx)
		case "guest":
			if len(args) == 0 {
				fmt.Println("Usage: guest <explorer|reviewer|admin>")
				continue
			}
			a.guestMode(ctx, args[0])
		case "profile":
			a.showProfile()
		case "reset":
			a.resetPassword(ctx)
		case "clearerror":
			a.coord.ClearError()
		case "logout":
			a.logout(ctx)
		case "exit", "quit":
			fmt.Println("Bye!")
			return
		default:
			fmt.Println("Unknown command:", cmd)
		}
	}
}
