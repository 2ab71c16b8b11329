package ui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Console writes user-facing messages. It backs the task runner's progress
// indicator and error notifications.
type Console struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewConsole returns a Console writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out, now: time.Now}
}

func (c *Console) println(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.out, line)
}

// Error shows an error notification.
func (c *Console) Error(message string) {
	c.println(ErrorMsg("%s", message))
}

// Warn shows a warning notification.
func (c *Console) Warn(message string) {
	c.println(WarnMsg("%s", message))
}

// Info shows an informational notification.
func (c *Console) Info(message string) {
	c.println(InfoMsg("%s", message))
}

// Success shows a success notification.
func (c *Console) Success(message string) {
	c.println(SuccessMsg("%s", message))
}

// Begin announces a long-running step and returns the func that closes it.
// The step cannot be canceled from here.
func (c *Console) Begin(title string) func() {
	start := c.now()
	c.println(InfoMsg("%s…", title))
	var once sync.Once
	return func() {
		once.Do(func() {
			elapsed := c.now().Sub(start).Round(100 * time.Millisecond)
			c.println(Muted(fmt.Sprintf("  %s finished in %s", title, elapsed)))
		})
	}
}
