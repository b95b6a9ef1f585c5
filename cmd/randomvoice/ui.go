package main

import (
	"errors"

	"github.com/pterm/pterm"

	"randomvoice/native/internal/domain"
)

// ui renders controller events on the terminal.
type ui struct {
	partner string
}

func newUI() *ui {
	return &ui{}
}

func (u *ui) render(ev domain.Event) {
	switch ev.Kind {
	case domain.EventStateChanged:
		if ev.State == domain.StateIdle {
			pterm.Info.Println("Call ended. Type s to search again.")
		}
	case domain.EventWaiting:
		pterm.Info.Println(ev.Text)
	case domain.EventMatched:
		u.partner = ev.Partner
		pterm.Success.Printfln("Matched with %s!", ev.Partner)
	case domain.EventConnected:
		pterm.Success.Printfln("Talking with %s", ev.Partner)
	case domain.EventPartnerLeft:
		if u.partner != "" {
			pterm.Warning.Printfln("%s disconnected. Searching...", u.partner)
		} else {
			pterm.Warning.Println("Partner disconnected. Searching...")
		}
		u.partner = ""
	case domain.EventConnectivityLost:
		pterm.Warning.Println("Connection unstable/failed")
	case domain.EventPlaybackBlocked:
		pterm.Error.Println("Cannot play partner audio. Type r to retry.")
	case domain.EventPlaybackResumed:
		pterm.Success.Println("Audio enabled!")
	case domain.EventError:
		pterm.Error.Println(describe(ev.Err))
	}
}

// describe turns a surfaced error into a short user message.
func describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrPermissionDenied):
		return "Microphone access denied"
	case errors.Is(err, domain.ErrDeviceUnavailable):
		return "No microphone available"
	case errors.Is(err, domain.ErrTransport):
		return "Cannot connect to server"
	case errors.Is(err, domain.ErrEmptyNickname):
		return "Please enter a nickname first!"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "Not possible right now"
	case errors.Is(err, domain.ErrEnded):
		return "Session ended"
	default:
		return err.Error()
	}
}
