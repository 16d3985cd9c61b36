package challenge

import (
	"bufio"
	"fmt"
	"io"
)

// Prompter surfaces a challenge to an external operator. PromptSolve returns
// a channel that is signalled once the operator confirms the challenge is
// solved; a nil channel means there is no operator surface and leaves
// clearance detection to marker polling.
type Prompter interface {
	PromptSolve(url string) <-chan struct{}
}

// NopPrompter is used in unattended runs: no prompt, never an
// acknowledgement.
type NopPrompter struct{}

func (NopPrompter) PromptSolve(string) <-chan struct{} { return nil }

// ConsolePrompter asks an interactive operator to solve the challenge in the
// visible browser window and waits for Enter.
type ConsolePrompter struct {
	in  io.Reader
	out io.Writer
}

func NewConsolePrompter(in io.Reader, out io.Writer) *ConsolePrompter {
	return &ConsolePrompter{in: in, out: out}
}

func (p *ConsolePrompter) PromptSolve(url string) <-chan struct{} {
	ack := make(chan struct{})

	go func() {
		fmt.Fprintf(p.out, "\nChallenge detected at %s\n", url)
		fmt.Fprintln(p.out, "Solve it in the browser window, then press Enter to continue...")

		reader := bufio.NewReader(p.in)
		if _, err := reader.ReadString('\n'); err != nil {
			// Stdin closed; leave clearance to marker polling.
			return
		}
		close(ack)
	}()

	return ack
}
