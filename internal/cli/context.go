package cli

import (
	"io"

	"github.com/charmbracelet/log"
)

// Context is passed to every deckctl command.
type Context struct {
	API *Client
	Log *log.Logger
	Out io.Writer
}
