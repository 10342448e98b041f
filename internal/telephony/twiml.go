package telephony

import (
	"bytes"
	"encoding/xml"
)

// Minimal TwiML builder for acknowledgements and inline call instructions.
// Only the verbs the gateway emits are modelled.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// emptyXMLAck is the acknowledgement Twilio and Plivo expect when there is nothing to reply.
const emptyXMLAck = "<Response></Response>"

func xmlAck(status int) ParseResult {
	return ParseResult{
		StatusCode: status,
		Body:       emptyXMLAck,
		Headers:    map[string]string{"Content-Type": "application/xml"},
	}
}

// renderCallTwiML returns inline instructions for a call placed without a webhook URL:
// speak message (if any), then hang up.
func renderCallTwiML(message string) (string, error) {
	var r twimlResponse
	if message != "" {
		r.Verbs = append(r.Verbs, twimlSay{Text: message})
	}
	r.Verbs = append(r.Verbs, twimlHangup{})

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
