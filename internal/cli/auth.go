package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/taskmith/authkit/internal/identity"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) login(ctx context.Context) {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		fmt.Println("input error:", err)
		return
	}
	password, err := getPassword(os.Stdout)
	if err != nil {
		fmt.Println("input error:", err)
		return
	}

	res := a.coord.SignIn(ctx, email, password)
	if !res.OK {
		fmt.Println("Sign-in failed:", res.Err.Message)
		return
	}
	fmt.Println("Signed in.")
}

func (a *App) register(ctx context.Context) {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		fmt.Println("input error:", err)
		return
	}
	name, err := getSimpleText(a.reader, "Enter display name", os.Stdout)
	if err != nil {
		fmt.Println("input error:", err)
		return
	}
	password, err := getPassword(os.Stdout)
	if err != nil {
		fmt.Println("input error:", err)
		return
	}

	res := a.coord.SignUp(ctx, email, password, name)
	switch {
	case !res.OK:
		fmt.Println("Sign-up failed:", res.Err.Message)
	case res.ConfirmationRequired:
		fmt.Println("Account created. Check your inbox to confirm the address.")
	default:
		fmt.Println("Account created and signed in.")
	}
}

func (a *App) guestMode(ctx context.Context, arg string) {
	persona, err := identity.ParsePersona(arg)
	if err != nil {
		fmt.Println(err)
		fmt.Print("Known personas:")
		for _, p := range identity.Personas() {
			fmt.Printf(" %s", p)
		}
		fmt.Println()
		return
	}

	res := a.coord.EnterGuestMode(ctx, persona)
	if !res.OK {
		fmt.Println("Guest mode failed:", res.Err.Message)
		return
	}
	fmt.Printf("Continuing as guest %q.\n", persona)
}

func (a *App) logout(ctx context.Context) {
	res := a.coord.SignOut(ctx)
	if !res.OK {
		fmt.Println("Sign-out failed:", res.Err.Message)
		return
	}
	fmt.Println("Signed out.")
}

func (a *App) resetPassword(ctx context.Context) {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		fmt.Println("input error:", err)
		return
	}
	res := a.coord.ResetPassword(ctx, email)
	if !res.OK {
		fmt.Println("Reset failed:", res.Err.Message)
		return
	}
	fmt.Println("Reset email requested.")
}

func (a *App) showProfile() {
	snap := a.coord.Snapshot()
	if snap.Profile == nil {
		fmt.Println("No profile loaded.")
		return
	}
	p := snap.Profile
	fmt.Printf("%s <%s>  role=%s tier=%s onboarded=%v\n", p.FullName, p.Email, p.Role, p.Tier, p.OnboardingDone)
}

func (a *App) showStatus() {
	snap := a.coord.Snapshot()
	fmt.Println("status:", snap.Status)
	if snap.User != nil {
		fmt.Println("user:  ", snap.User.Email)
	}
	if snap.Persona != "" {
		fmt.Println("persona:", snap.Persona)
	}
	if snap.Err != nil {
		fmt.Println("error: ", snap.Err.Message)
		if snap.Err.Hint != "" {
			fmt.Println("hint:  ", snap.Err.Hint)
		}
		if snap.GuestAvailable {
			fmt.Println("tip:    type 'guest explorer' to continue without an account")
		}
	}
}
