package proto

import (
	"bytes"
	"strconv"
)

// WriteInfo formats an INFO frame carrying the raw server info JSON.
func WriteInfo(buf *bytes.Buffer, json []byte) {
	buf.WriteString("INFO ")
	buf.Write(json)
	buf.Write(crlf)
}

// WriteConnect formats a CONNECT frame carrying the raw client options JSON.
func WriteConnect(buf *bytes.Buffer, json []byte) {
	buf.WriteString("CONNECT ")
	buf.Write(json)
	buf.Write(crlf)
}

// WritePing formats a PING frame.
func WritePing(buf *bytes.Buffer) { buf.WriteString("PING"); buf.Write(crlf) }

// WritePong formats a PONG frame.
func WritePong(buf *bytes.Buffer) { buf.WriteString("PONG"); buf.Write(crlf) }

// WriteSub formats a SUB frame. queue may be empty for a non-queue subscription.
func WriteSub(buf *bytes.Buffer, subject, queue string, sid int64) {
	buf.WriteString("SUB ")
	buf.WriteString(subject)
	buf.WriteByte(' ')
	if queue != "" {
		buf.WriteString(queue)
		buf.WriteByte(' ')
	}
	buf.WriteString(strconv.FormatInt(sid, 10))
	buf.Write(crlf)
}

// WriteUnsub formats an UNSUB frame. maxMsgs of 0 omits the max-messages argument.
func WriteUnsub(buf *bytes.Buffer, sid int64, maxMsgs int) {
	buf.WriteString("UNSUB ")
	buf.WriteString(strconv.FormatInt(sid, 10))
	if maxMsgs > 0 {
		buf.WriteByte(' ')
		buf.WriteString(strconv.Itoa(maxMsgs))
	}
	buf.Write(crlf)
}

// WritePub formats a PUB frame followed by its payload and trailing CRLF.
func WritePub(buf *bytes.Buffer, subject, reply string, payload []byte) {
	buf.WriteString("PUB ")
	buf.WriteString(subject)
	buf.WriteByte(' ')
	if reply != "" {
		buf.WriteString(reply)
		buf.WriteByte(' ')
	}
	buf.WriteString(strconv.Itoa(len(payload)))
	buf.Write(crlf)
	buf.Write(payload)
	buf.Write(crlf)
}

// WriteHPub formats an HPUB frame: a header block followed by the body,
// preceded by an args line carrying both the header-block length and the
// combined total length.
func WriteHPub(buf *bytes.Buffer, subject, reply string, h *Header, body []byte) {
	var hdr bytes.Buffer
	writeHeaderBlock(&hdr, h, 0, "")

	buf.WriteString("HPUB ")
	buf.WriteString(subject)
	buf.WriteByte(' ')
	if reply != "" {
		buf.WriteString(reply)
		buf.WriteByte(' ')
	}
	buf.WriteString(strconv.Itoa(hdr.Len()))
	buf.WriteByte(' ')
	buf.WriteString(strconv.Itoa(hdr.Len() + len(body)))
	buf.Write(crlf)
	buf.Write(hdr.Bytes())
	buf.Write(body)
	buf.Write(crlf)
}

// WriteMsg formats a server-to-client MSG frame.
func WriteMsg(buf *bytes.Buffer, subject string, sid int64, reply string, payload []byte) {
	buf.WriteString("MSG ")
	buf.WriteString(subject)
	buf.WriteByte(' ')
	buf.WriteString(strconv.FormatInt(sid, 10))
	buf.WriteByte(' ')
	if reply != "" {
		buf.WriteString(reply)
		buf.WriteByte(' ')
	}
	buf.WriteString(strconv.Itoa(len(payload)))
	buf.Write(crlf)
	buf.Write(payload)
	buf.Write(crlf)
}

// WriteHMsg formats a server-to-client HMSG frame, optionally carrying a
// status line (status of 0 omits the status line's code/text entirely).
func WriteHMsg(buf *bytes.Buffer, subject string, sid int64, reply string, h *Header, status int, statusText string, body []byte) {
	var hdr bytes.Buffer
	writeHeaderBlock(&hdr, h, status, statusText)

	buf.WriteString("HMSG ")
	buf.WriteString(subject)
	buf.WriteByte(' ')
	buf.WriteString(strconv.FormatInt(sid, 10))
	buf.WriteByte(' ')
	if reply != "" {
		buf.WriteString(reply)
		buf.WriteByte(' ')
	}
	buf.WriteString(strconv.Itoa(hdr.Len()))
	buf.WriteByte(' ')
	buf.WriteString(strconv.Itoa(hdr.Len() + len(body)))
	buf.Write(crlf)
	buf.Write(hdr.Bytes())
	buf.Write(body)
	buf.Write(crlf)
}

// WriteOK formats a +OK frame.
func WriteOK(buf *bytes.Buffer) { buf.WriteString("+OK"); buf.Write(crlf) }

// WriteErr formats a -ERR frame.
func WriteErr(buf *bytes.Buffer, reason string) {
	buf.WriteString("-ERR '")
	buf.WriteString(reason)
	buf.WriteString("'")
	buf.Write(crlf)
}
