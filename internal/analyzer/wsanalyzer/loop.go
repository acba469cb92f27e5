package wsanalyzer

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/fventuri/inspfwd/internal/analyzer"
	"github.com/fventuri/inspfwd/internal/forwarder"
)

// pollInterval bounds how long a single blocking Receive can hold the
// connection before checking ctx again, the same role the teacher's
// SetReadDeadline(time.Now()) toggle plays for its pause key: a short
// deadline that turns a blocking read into a polling one.
const pollInterval = 250 * time.Millisecond

// Run drives fwd from this client's inbound stream until ctx is
// canceled or the connection fails. Every OPEN/WRONG_HANDLE/
// INVALID_CHANNEL frame goes to fwd.ProcessMessage; every SAMPLES
// frame goes to fwd.FeedSamplesMessage. Receive returns nil for
// unrecognized frames, and Run skips them.
func (c *Client) Run(ctx context.Context, fwd *forwarder.Forwarder) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		c.conn.SetReadDeadline(time.Now().Add(pollInterval))
		msg, err := c.Receive()
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			return err
		}
		if msg == nil {
			continue
		}

		switch m := msg.(type) {
		case analyzer.SamplesMessage:
			fwd.FeedSamplesMessage(m)
		default:
			fwd.ProcessMessage(msg)
		}
	}
}
