package protocol

type Command string

const (
	PING Command = "PING"
	GET  Command = "GET"
	SET  Command = "SET"
)

var (
	ReplyPong = Status("PONG")
	ReplyOk   = Status("OK")
)
