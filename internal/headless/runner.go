// Package headless drives the booking wizard over plain lines of text, for
// terminals without a full-screen UI and for scripted sessions.
//
// Input lines are either a prompt number, a command starting with "/", or
// free text sent to the chat endpoint:
//
//	1            choose prompt 1
//	/back        go back one step
//	/reset       start over
//	/agree       accept the cancellation policy (confirmation only)
//	/pay 2       charge payment method 2 (confirmation only)
//	/submit      submit the booking (confirmation only)
//	/cancel      close the confirmation
//	/ok          acknowledge a completed booking
//	/quit        exit
package headless

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mark3labs/rirakoi/internal/booking"
	ierr "github.com/mark3labs/rirakoi/internal/errors"
	"github.com/mark3labs/rirakoi/internal/logger"
)

var errQuit = errors.New("quit")

// Runner reads commands from in and writes the conversation to out.
type Runner struct {
	m   *booking.Machine
	in  io.Reader
	out io.Writer
	log *logger.Logger

	// shown is how much of the transcript has been printed.
	shown int
}

func New(m *booking.Machine, in io.Reader, out io.Writer) *Runner {
	return &Runner{m: m, in: in, out: out, log: logger.With("headless")}
}

// Run processes input until EOF, /quit or ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.load(ctx)
	r.render()

	scanner := bufio.NewScanner(r.in)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		err := r.handle(ctx, line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			r.report(err)
		}
		r.load(ctx)
		r.render()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

func (r *Runner) handle(ctx context.Context, line string) error {
	if strings.HasPrefix(line, "/") {
		cmd, arg, _ := strings.Cut(line[1:], " ")
		return r.command(ctx, strings.ToLower(cmd), strings.TrimSpace(arg))
	}

	if c := r.m.Confirmation(); c != nil {
		// Numbers pick a payment method while the confirmation is open.
		if n, err := strconv.Atoi(line); err == nil {
			return r.pay(ctx, c, n)
		}
		return r.m.Chat(ctx, line)
	}

	if n, err := strconv.Atoi(line); err == nil {
		prompts := r.m.Prompts()
		if n < 1 || n > len(prompts) {
			return fmt.Errorf("choose a number between 1 and %d", len(prompts))
		}
		return r.m.Choose(ctx, prompts[n-1])
	}
	return r.m.Chat(ctx, line)
}

func (r *Runner) command(ctx context.Context, cmd, arg string) error {
	switch cmd {
	case "quit", "exit":
		return errQuit
	case "back":
		if !r.m.Back(ctx) {
			return errors.New("cannot go back from here")
		}
		return nil
	case "reset":
		r.shown = 0
		return r.m.Reset(ctx)
	}

	c := r.m.Confirmation()
	if c == nil {
		return fmt.Errorf("unknown command /%s", cmd)
	}
	switch cmd {
	case "agree":
		return c.SetAgreed(true)
	case "disagree":
		return c.SetAgreed(false)
	case "pay":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return errors.New("usage: /pay <number>")
		}
		return r.pay(ctx, c, n)
	case "submit":
		return c.Submit(ctx)
	case "reload":
		return c.Load(ctx)
	case "cancel":
		return c.Cancel(ctx)
	case "ok":
		r.shown = 0
		return c.Acknowledge(ctx)
	}
	return fmt.Errorf("unknown command /%s", cmd)
}

func (r *Runner) pay(ctx context.Context, c *booking.Confirmation, n int) error {
	methods := c.PaymentMethods()
	if n < 1 || n > len(methods) {
		return fmt.Errorf("choose a payment method between 1 and %d", len(methods))
	}
	return c.SelectPaymentMethod(ctx, methods[n-1].ID)
}

// report prints errors the screen does not already show. Chat failures
// are in the transcript and confirmation failures are rendered inline.
func (r *Runner) report(err error) {
	var emptyErr *ierr.EmptyOptionsError
	var netErr *ierr.NetworkError
	var subErr *ierr.BookingSubmissionError
	if errors.As(err, &emptyErr) || errors.As(err, &netErr) || errors.As(err, &subErr) || errors.Is(err, ierr.ErrStale) {
		return
	}
	r.log.Debug("command failed: %v", err)
	if ierr.Programming(err) || errors.Is(err, ierr.ErrBusy) {
		fmt.Fprintf(r.out, "! %s\n", ierr.UserMessage(err))
		return
	}
	fmt.Fprintf(r.out, "! %v\n", err)
}

// load fetches payment methods and policy text the first time a
// confirmation is shown.
func (r *Runner) load(ctx context.Context) {
	c := r.m.Confirmation()
	if c == nil || c.Loading() || c.PaymentMethodsLoaded() || c.PolicyLoaded() ||
		c.PaymentMethodsErr() != nil || c.PolicyErr() != nil {
		return
	}
	if err := c.Load(ctx); err != nil {
		r.log.Warn("loading confirmation: %v", err)
	}
}

func (r *Runner) render() {
	transcript := r.m.Transcript()
	if r.shown > len(transcript) {
		r.shown = 0
	}
	for _, msg := range transcript[r.shown:] {
		prefix := ">"
		switch {
		case msg.IsError:
			prefix = "!"
		case msg.Sender == booking.SenderUser:
			prefix = "<"
		}
		fmt.Fprintf(r.out, "%s %s\n", prefix, msg.Text)
	}
	r.shown = len(transcript)

	if c := r.m.Confirmation(); c != nil {
		r.renderConfirmation(c)
		return
	}

	fmt.Fprintf(r.out, "[%s]\n", r.m.Step().Title())
	for i, p := range r.m.Prompts() {
		fmt.Fprintf(r.out, "  %d) %s\n", i+1, p.Label)
	}
}

func (r *Runner) renderConfirmation(c *booking.Confirmation) {
	d := r.m.Draft()
	fmt.Fprintf(r.out, "[%s]\n", r.m.Step().Title())

	if c.Phase() == booking.PhaseSucceeded {
		fmt.Fprintf(r.out, "  予約番号: %s\n", c.Result().ID)
		fmt.Fprintln(r.out, "  /ok で閉じる")
		return
	}

	for _, row := range booking.Summary(d) {
		fmt.Fprintf(r.out, "  %s: %s\n", row.Label, row.Value)
	}

	switch {
	case c.PaymentMethodsErr() != nil:
		fmt.Fprintf(r.out, "  支払方法: %s (/reload)\n", ierr.UserMessage(c.PaymentMethodsErr()))
	case c.PaymentMethodsLoaded():
		for i, pm := range c.PaymentMethods() {
			mark := " "
			if pm.ID == c.SelectedPaymentMethod() {
				mark = "*"
			}
			fmt.Fprintf(r.out, "  %s%d) %s\n", mark, i+1, pm.Label())
		}
	}

	switch {
	case c.PolicyErr() != nil:
		fmt.Fprintf(r.out, "  キャンセルポリシー: %s (/reload)\n", ierr.UserMessage(c.PolicyErr()))
	case c.PolicyLoaded():
		fmt.Fprintln(r.out, indent(c.Policy(), "  | "))
	}

	agreed := "[ ]"
	if c.Agreed() {
		agreed = "[x]"
	}
	fmt.Fprintf(r.out, "  %s キャンセルポリシーに同意する (/agree)\n", agreed)

	if err := c.SubmitErr(); err != nil {
		fmt.Fprintf(r.out, "  ! %s\n", ierr.UserMessage(err))
	}
	if c.CanSubmit() {
		fmt.Fprintln(r.out, "  /submit 予約を確定する  /cancel キャンセル")
	} else {
		fmt.Fprintln(r.out, "  /cancel キャンセル")
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
