package main

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/pterm/pterm"

	"randomvoice/native/internal/call"
)

type command int

const (
	cmdNone command = iota
	cmdNext
	cmdEnd
	cmdSearch
	cmdResume
	cmdQuit
	cmdHelp
)

func parseCommand(line string) command {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "n", "next":
		return cmdNext
	case "e", "end":
		return cmdEnd
	case "s", "search":
		return cmdSearch
	case "r", "resume":
		return cmdResume
	case "q", "quit", "exit":
		return cmdQuit
	case "h", "help", "?":
		return cmdHelp
	default:
		return cmdNone
	}
}

// readCommands executes one command per input line until quit or EOF.
func readCommands(ctx context.Context, in io.Reader, ctrl *call.Controller, nickname string, quit func()) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		var err error
		switch parseCommand(scanner.Text()) {
		case cmdNext:
			err = ctrl.Next(ctx)
			if err == nil {
				pterm.Info.Println("Looking for a new partner...")
			}
		case cmdEnd:
			err = ctrl.End(ctx)
		case cmdSearch:
			err = ctrl.StartSearch(ctx, nickname)
			if err == nil {
				pterm.Info.Println("Looking for a partner...")
			}
		case cmdResume:
			err = ctrl.Resume(ctx)
		case cmdQuit:
			quit()
			return
		case cmdHelp:
			pterm.Println("n next  e end  s search  r resume  q quit")
		default:
			continue
		}
		if err != nil {
			pterm.Warning.Println(describe(err))
		}
	}
}
