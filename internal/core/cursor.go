package core

import "context"

const cursorBatch = 32

// Cursor is one reader's position in a room. It is not safe for concurrent use.
type Cursor struct {
	room    *Room
	next    int64
	pending []Message
}

// Position is the index of the next message Next will return.
func (c *Cursor) Position() int64 { return c.next }

// Next returns the message at the cursor position and advances. When the
// reader is caught up it parks on the room notifier until the message exists.
// Backlog catch-up and live tail go through the same path.
func (c *Cursor) Next(ctx context.Context) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	for len(c.pending) == 0 {
		if err := c.fill(ctx); err != nil {
			return Message{}, err
		}
		if len(c.pending) > 0 {
			break
		}
		if err := c.room.WaitFor(ctx, c.next+1); err != nil {
			return Message{}, err
		}
	}

	msg := c.pending[0]
	c.pending = c.pending[1:]
	c.next++
	return msg, nil
}

func (c *Cursor) fill(ctx context.Context) error {
	for msg, err := range c.room.History(ctx, c.next) {
		if err != nil {
			return err
		}
		c.pending = append(c.pending, msg)
		if len(c.pending) >= cursorBatch {
			break
		}
	}
	return nil
}
