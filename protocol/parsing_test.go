package protocol_test

import (
	"bytes"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/beacon/protocol"
)

var _ = Describe("Parsing", func() {
	Describe("Decode()", func() {
		It("needs more data when the buffer is empty", func() {
			_, n, err := protocol.Decode(nil)
			Expect(err).To(Succeed())
			Expect(n).To(BeZero())
		})

		It("returns an error if the type byte is unknown", func() {
			_, _, err := protocol.Decode([]byte("!oops\r\n"))
			Expect(errors.Is(err, protocol.ErrProtocol)).To(BeTrue())

			_, _, err = protocol.Decode([]byte(":12\r\n"))
			Expect(errors.Is(err, protocol.ErrProtocol)).To(BeTrue())
		})

		Describe("status and error", func() {
			It("parses a status", func() {
				v, n, err := protocol.Decode([]byte("+PONG\r\n"))
				Expect(err).To(Succeed())
				Expect(n).To(Equal(7))
				Expect(v).To(Equal(protocol.Status("PONG")))
			})

			It("parses an error", func() {
				v, n, err := protocol.Decode([]byte("-ERR nope\r\n"))
				Expect(err).To(Succeed())
				Expect(n).To(Equal(11))
				Expect(v).To(Equal(protocol.Error("ERR nope")))
			})

			It("parses an empty status", func() {
				v, n, err := protocol.Decode([]byte("+\r\n"))
				Expect(err).To(Succeed())
				Expect(n).To(Equal(3))
				Expect(v).To(Equal(protocol.Status("")))
			})

			It("needs more data until the line is terminated", func() {
				for _, partial := range []string{"+", "+PO", "+PONG", "+PONG\r"} {
					_, n, err := protocol.Decode([]byte(partial))
					Expect(err).To(Succeed())
					Expect(n).To(BeZero(), partial)
				}
			})

			It("only consumes the first line", func() {
				v, n, err := protocol.Decode([]byte("+OK\r\n+PONG\r\n"))
				Expect(err).To(Succeed())
				Expect(n).To(Equal(5))
				Expect(v).To(Equal(protocol.Status("OK")))
			})
		})

		Describe("bulk strings", func() {
			It("parses a bulk string", func() {
				v, n, err := protocol.Decode([]byte("$3\r\nfoo\r\n"))
				Expect(err).To(Succeed())
				Expect(n).To(Equal(9))
				Expect(v).To(Equal(protocol.BulkString("foo")))
			})

			It("parses an empty bulk string", func() {
				v, n, err := protocol.Decode([]byte("$0\r\n\r\n"))
				Expect(err).To(Succeed())
				Expect(n).To(Equal(6))
				Expect(v).To(Equal(protocol.Bulk([]byte{})))
				Expect(v.IsNull()).To(BeFalse())
			})

			It("parses the null bulk string", func() {
				v, n, err := protocol.Decode([]byte("$-1\r\n"))
				Expect(err).To(Succeed())
				Expect(n).To(Equal(5))
				Expect(v).To(Equal(protocol.NullBulk()))
				Expect(v.IsNull()).To(BeTrue())
			})

			It("keeps embedded line terminators in the payload", func() {
				v, _, err := protocol.Decode([]byte("$8\r\nfoo\r\nbar\r\n"))
				Expect(err).To(Succeed())
				Expect(v.Bulk).To(Equal([]byte("foo\r\nbar")))
			})

			It("keeps arbitrary binary payloads", func() {
				payload := []byte{0x00, 0xff, '\r', 0xfe}
				v, _, err := protocol.Decode(protocol.Encode(protocol.Bulk(payload)))
				Expect(err).To(Succeed())
				Expect(v.Bulk).To(Equal(payload))
			})

			It("does not alias the input buffer", func() {
				buf := []byte("$3\r\nfoo\r\n")
				v, _, err := protocol.Decode(buf)
				Expect(err).To(Succeed())

				copy(buf, "$3\r\nbar\r\n")
				Expect(string(v.Bulk)).To(Equal("foo"))
			})

			It("returns an error if the length is not a number", func() {
				_, _, err := protocol.Decode([]byte("$abc\r\nfoo\r\n"))
				Expect(errors.Is(err, protocol.ErrProtocol)).To(BeTrue())
			})

			It("returns an error if the length is negative", func() {
				_, _, err := protocol.Decode([]byte("$-2\r\n"))
				Expect(errors.Is(err, protocol.ErrProtocol)).To(BeTrue())
			})

			It("returns an error if the payload is not followed by CRLF", func() {
				_, _, err := protocol.Decode([]byte("$3\r\nfooXY"))
				Expect(errors.Is(err, protocol.ErrProtocol)).To(BeTrue())
			})

			It("waits for the payload of a huge declared length", func() {
				_, n, err := protocol.Decode([]byte("$9223372036854775807\r\nfoo"))
				Expect(err).To(Succeed())
				Expect(n).To(BeZero())
			})
		})

		Describe("arrays", func() {
			It("parses a command array", func() {
				v, n, err := protocol.Decode([]byte("*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n"))
				Expect(err).To(Succeed())
				Expect(n).To(Equal(22))
				Expect(v).To(Equal(protocol.Array(
					protocol.BulkString("GET"),
					protocol.BulkString("foo"),
				)))
			})

			It("parses an empty array", func() {
				v, n, err := protocol.Decode([]byte("*0\r\n"))
				Expect(err).To(Succeed())
				Expect(n).To(Equal(4))
				Expect(v).To(Equal(protocol.Array()))
				Expect(v.IsNull()).To(BeFalse())
			})

			It("parses the null array", func() {
				v, n, err := protocol.Decode([]byte("*-1\r\n"))
				Expect(err).To(Succeed())
				Expect(n).To(Equal(5))
				Expect(v).To(Equal(protocol.NullArray()))
			})

			It("accepts null bulk strings as elements", func() {
				v, _, err := protocol.Decode([]byte("*2\r\n$-1\r\n$1\r\na\r\n"))
				Expect(err).To(Succeed())
				Expect(v).To(Equal(protocol.Array(protocol.NullBulk(), protocol.BulkString("a"))))
			})

			It("returns an error for elements that are not bulk strings", func() {
				for _, input := range []string{
					"*1\r\n+OK\r\n",
					"*1\r\n-ERR\r\n",
					"*1\r\n*0\r\n",
					"*2\r\n$1\r\na\r\n:1\r\n",
				} {
					_, _, err := protocol.Decode([]byte(input))
					Expect(errors.Is(err, protocol.ErrProtocol)).To(BeTrue(), input)
				}
			})

			It("returns an error if the count is not a number", func() {
				_, _, err := protocol.Decode([]byte("*x\r\n"))
				Expect(errors.Is(err, protocol.ErrProtocol)).To(BeTrue())
			})

			It("returns an error if the count is negative", func() {
				_, _, err := protocol.Decode([]byte("*-5\r\n"))
				Expect(errors.Is(err, protocol.ErrProtocol)).To(BeTrue())
			})

			It("does not allocate for a huge declared count", func() {
				var (
					n   int
					err error
				)

				Expect(func() {
					_, n, err = protocol.Decode([]byte("*9223372036854775807\r\n$1\r\na\r\n"))
				}).NotTo(Panic())
				Expect(err).To(Succeed())
				Expect(n).To(BeZero())
			})

			It("reports a bad element even when more elements are missing", func() {
				_, _, err := protocol.Decode([]byte("*3\r\n$1\r\na\r\n$1\r\nbXY"))
				Expect(errors.Is(err, protocol.ErrProtocol)).To(BeTrue())
			})
		})

		Describe("incremental feeding", func() {
			frames := []string{
				"+PONG\r\n",
				"-ERR unknown command 'FOOO'\r\n",
				"$-1\r\n",
				"$0\r\n\r\n",
				"$12\r\nhello\r\nworld\r\n",
				"*-1\r\n",
				"*0\r\n",
				"*1\r\n$4\r\nPING\r\n",
				"*3\r\n$3\r\nSET\r\n$1\r\na\r\n$1\r\n1\r\n",
				"*3\r\n$3\r\nSET\r\n$-1\r\n$10\r\n0123456789\r\n",
			}

			It("needs more data at every split point and then yields the whole frame", func() {
				for _, frame := range frames {
					full := []byte(frame)

					want, wantN, err := protocol.Decode(full)
					Expect(err).To(Succeed())
					Expect(wantN).To(Equal(len(full)))

					for split := 0; split < len(full); split++ {
						head := append([]byte{}, full[:split]...)
						before := append([]byte{}, head...)

						_, n, err := protocol.Decode(head)
						Expect(err).To(Succeed(), "%q split at %d", frame, split)
						Expect(n).To(BeZero(), "%q split at %d", frame, split)
						Expect(head).To(Equal(before))

						joined := append(head, full[split:]...)
						got, n, err := protocol.Decode(joined)
						Expect(err).To(Succeed())
						Expect(n).To(Equal(wantN))
						Expect(got).To(Equal(want))
					}
				}
			})

			It("decodes pipelined frames one at a time", func() {
				buf := []byte(strings.Join(frames, ""))

				for _, frame := range frames {
					want, _, err := protocol.Decode([]byte(frame))
					Expect(err).To(Succeed())

					got, n, err := protocol.Decode(buf)
					Expect(err).To(Succeed())
					Expect(n).To(Equal(len(frame)))
					Expect(got).To(Equal(want))

					buf = buf[n:]
				}

				Expect(buf).To(BeEmpty())
			})
		})

		It("round trips every kind of value", func() {
			values := []protocol.Value{
				protocol.Status("OK"),
				protocol.Status(""),
				protocol.Error("ERR something went wrong"),
				protocol.BulkString("bar"),
				protocol.Bulk([]byte{}),
				protocol.Bulk(bytes.Repeat([]byte("\r\n"), 10)),
				protocol.NullBulk(),
				protocol.Array(),
				protocol.NullArray(),
				protocol.Array(protocol.BulkString("SET"), protocol.NullBulk(), protocol.Bulk([]byte{})),
			}

			for _, value := range values {
				data := protocol.Encode(value)

				decoded, n, err := protocol.Decode(data)
				Expect(err).To(Succeed(), "%q", data)
				Expect(n).To(Equal(len(data)))
				Expect(decoded).To(Equal(value))
			}
		})
	})
})
