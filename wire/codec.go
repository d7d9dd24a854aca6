package wire

import (
	"encoding/json"
	"fmt"
	"io"
)

// Envelope pairs a message with the channel it travels on. Stream transports
// multiplex all channels over one connection, so the channel name rides in
// the frame.
type Envelope struct {
	Channel Channel  `json:"channel"`
	Message *Message `json:"message"`
}

// Codec frames envelopes as newline-delimited JSON over a single stream.
// Encode and Decode are each safe for one concurrent user; callers that
// share a codec across goroutines serialize access themselves.
type Codec struct {
	conn io.ReadWriteCloser
	enc  *json.Encoder
	dec  *json.Decoder
}

// NewCodec wraps a connection in a codec. The codec owns the connection and
// closes it on Close.
func NewCodec(conn io.ReadWriteCloser) *Codec {
	return &Codec{
		conn: conn,
		enc:  json.NewEncoder(conn),
		dec:  json.NewDecoder(conn),
	}
}

// Encode writes one envelope followed by a newline.
func (c *Codec) Encode(env *Envelope) error {
	if err := c.enc.Encode(env); err != nil {
		return fmt.Errorf("wire: encode %s: %w", env.Channel, err)
	}
	return nil
}

// Decode reads the next envelope from the stream. On a cleanly closed
// connection it returns io.EOF.
func (c *Codec) Decode() (*Envelope, error) {
	var env Envelope
	if err := c.dec.Decode(&env); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("wire: decode: %w", err)
	}
	if env.Message == nil {
		return nil, fmt.Errorf("wire: decode: frame without message")
	}
	return &env, nil
}

// Close closes the underlying connection.
func (c *Codec) Close() error {
	return c.conn.Close()
}
