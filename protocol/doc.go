package protocol

// This package implements parsing and serialising of the payloads that Beacon
// exchanges with its clients. The wire format is RESP, the Redis protocol, so
// any Redis client can talk to a Beacon server.
//
// - `Value`   - One RESP value: a status, an error, a bulk string or an array.
// - `Request` - A validated client command built from an array Value.
//
// === General Syntax
//
// - lines are `\r\n` delimited
// - the first byte of every value says what type it is
//
//   ```
//     +<status>\r\n
//     -<error>\r\n
//     $<len>\r\n<bytes>\r\n      ($-1\r\n is the null bulk string)
//     *<count>\r\n<values...>    (*-1\r\n is the null array)
//   ```
//
// Bulk strings carry an explicit length so their payload may contain any byte,
// including `\r\n`.
//
// === Client Commands
//
// Clients send an array of bulk strings, the first of which names the
// command. Command names are case insensitive.
//
// - `PING`         - Server will respond with +PONG
// - `GET <key>`    - Server responds with the value as a bulk string, or the
//                    null bulk string when the key has never been set
// - `SET <k> <v>`  - Stores the value, server responds with +OK
//
// For example
//   ```
//     > *2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n
//     < $3\r\nbar\r\n
//   ```
//
// === Error responses
//
// A command that is unknown or has the wrong arguments is answered with an
// error and the connection stays open.
//
//   ```
//     > *1\r\n$4\r\nFOOO\r\n
//     < -ERR unknown command 'FOOO'\r\n
//   ```
//
// Bytes that are not valid RESP at all are answered (best effort) with
// `-ERR Protocol error: <reason>` and the server closes the connection, as
// there is no way to find the start of the next frame.
//
// === Pipelining
//
// Clients may send several commands without waiting for replies. Replies are
// always written in the order the commands were received.
//
