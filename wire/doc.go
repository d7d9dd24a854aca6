// Package wire defines the messages quill exchanges with frontends and the
// framing used to move them over a byte stream.
//
// # Messages
//
// A [Message] carries a [Header], the header of the message that caused it,
// and a free-form content map. [NewMessage] mints fresh messages; [Reply]
// builds one correlated to a parent. Content fields are read through the
// tolerant accessors [Message.Str], [Message.Int] and [Message.Bool], which
// treat missing and mistyped fields as zero values rather than errors.
//
// # Kinds and channels
//
// [Kind] enumerates the message types: eight request kinds, their paired
// replies ([Kind.Reply]), and the broadcast kinds published while requests
// are processed. [Channel] names the logical sockets; stream transports
// multiplex them over one connection using [Envelope] frames.
//
// # Framing
//
// [Codec] frames envelopes as newline-delimited JSON over an
// io.ReadWriteCloser. Each frame is one envelope; a cleanly closed peer
// surfaces as io.EOF from [Codec.Decode].
package wire
