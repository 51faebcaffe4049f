// Package testutil provides fakes shared by package tests.
package testutil

import (
	"sync"

	"github.com/frudas24/owbremote/internal/command"
)

// RecordingSender records every command it is asked to send.
// When Err is set, sends fail with Err and are not recorded.
type RecordingSender struct {
	mu       sync.Mutex
	Err      error
	commands []command.Command
	attempts int
}

// Send records cmd or returns Err.
func (r *RecordingSender) Send(cmd command.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	if r.Err != nil {
		return r.Err
	}
	r.commands = append(r.commands, cmd)
	return nil
}

// Commands returns a copy of the recorded commands.
func (r *RecordingSender) Commands() []command.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]command.Command(nil), r.commands...)
}

// Attempts returns how many sends were attempted, including failed ones.
func (r *RecordingSender) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

// Reset forgets recorded commands and attempts.
func (r *RecordingSender) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = nil
	r.attempts = 0
}

// CountKind returns how many recorded commands have kind k.
func (r *RecordingSender) CountKind(k command.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.commands {
		if c.Kind() == k {
			n++
		}
	}
	return n
}
