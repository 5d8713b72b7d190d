package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"

	"github.com/zhouzirui/ragebot/backend/internal/model/difficulty"
	"github.com/zhouzirui/ragebot/backend/internal/service/roast"
)

const owner = "cli"

// Renderer turns a markdown reply into terminal text.
type Renderer func(markdown string) string

// MarkdownRenderer renders replies with glamour, falling back to the raw text.
func MarkdownRenderer() Renderer {
	return func(markdown string) string {
		rendered, err := glamour.Render(markdown, "dark")
		if err != nil {
			return markdown
		}
		return strings.TrimRight(rendered, "\n")
	}
}

// REPL is the terminal chat loop.
type REPL struct {
	roast  *roast.Service
	in     *bufio.Scanner
	out    io.Writer
	render Renderer

	prompt *color.Color
	bot    *color.Color
	info   *color.Color
	warn   *color.Color
}

// NewREPL creates a REPL reading from in and writing to out.
func NewREPL(roastSvc *roast.Service, in io.Reader, out io.Writer, render Renderer) *REPL {
	if render == nil {
		render = func(s string) string { return s }
	}
	return &REPL{
		roast:  roastSvc,
		in:     bufio.NewScanner(in),
		out:    out,
		render: render,
		prompt: color.New(color.FgCyan, color.Bold),
		bot:    color.New(color.FgRed, color.Bold),
		info:   color.RGB(150, 150, 150),
		warn:   color.RGB(250, 150, 150),
	}
}

// Run asks for a difficulty and then chats until exit or end of input.
func (r *REPL) Run(ctx context.Context) error {
	r.prompt.Fprint(r.out, "Choose difficulty (easy, medium, hard): ")
	raw, ok := r.readLine()
	if !ok {
		return r.in.Err()
	}

	level, known := difficulty.Lookup(raw)
	if !known {
		r.warn.Fprintf(r.out, "Invalid difficulty. Defaulting to %s.\n", level)
	}
	if _, err := r.roast.SetDifficulty(ctx, owner, level); err != nil {
		return err
	}
	r.info.Fprintln(r.out, "Type 'exit' to quit. Commands: /reset, /summary, /score")

	for {
		r.prompt.Fprint(r.out, "You: ")
		line, ok := r.readLine()
		if !ok {
			return r.in.Err()
		}

		switch strings.ToLower(line) {
		case "":
			continue
		case "exit":
			r.info.Fprintln(r.out, "Goodbye!")
			return nil
		case "/reset":
			r.roast.Reset(ctx, owner)
			if _, err := r.roast.SetDifficulty(ctx, owner, level); err != nil {
				return err
			}
			r.info.Fprintln(r.out, "Conversation cleared.")
		case "/score":
			r.printScore(ctx)
		case "/summary":
			r.printSummary(ctx)
		default:
			if err := r.exchange(ctx, line); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				r.warn.Fprintf(r.out, "Error communicating with the model: %v\n", err)
			}
		}
	}
}

func (r *REPL) exchange(ctx context.Context, line string) error {
	reply, err := r.roast.Exchange(ctx, owner, line, "")
	if err != nil {
		return err
	}

	r.bot.Fprint(r.out, "Bot: ")
	fmt.Fprintln(r.out, r.render(reply.Text))
	if reply.Score != nil {
		r.info.Fprintf(r.out, "Score: %d/100 | Average: %s/100\n", *reply.Score, reply.AverageScore)
	} else {
		r.info.Fprintf(r.out, "Average: %s/100\n", reply.AverageScore)
	}
	return nil
}

func (r *REPL) printScore(ctx context.Context) {
	status, err := r.roast.Status(ctx, owner)
	if err != nil {
		r.warn.Fprintf(r.out, "Error: %v\n", err)
		return
	}
	r.info.Fprintf(r.out, "Average productivity score: %s/100 (%d rated, difficulty %s)\n",
		status.AverageScore, status.ScoredTurns, status.Difficulty)
}

func (r *REPL) printSummary(ctx context.Context) {
	summary, err := r.roast.Summary(ctx, owner)
	if err != nil {
		r.warn.Fprintf(r.out, "Error communicating with the model: %v\n", err)
		return
	}
	r.info.Fprintln(r.out, summary.Basic)
	fmt.Fprintln(r.out, r.render(summary.Summary))
}

func (r *REPL) readLine() (string, bool) {
	if !r.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(r.in.Text()), true
}
