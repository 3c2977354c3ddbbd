package telephony

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// ConnectStream builds the TwiML that answers a call: speak one line,
// then connect the call's media stream to the relay's WebSocket URL.
func ConnectStream(say, wsURL string) string {
	return fmt.Sprintf(
		`<?xml version="1.0" encoding="UTF-8"?>`+
			`<Response><Say>%s</Say><Connect><Stream url="%s"/></Connect></Response>`,
		escape(say), escape(wsURL),
	)
}

// escape XML-escapes text and attribute content.
func escape(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
