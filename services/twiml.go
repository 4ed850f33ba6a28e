package services

import (
	"encoding/xml"
	"strings"
)

// TwiML verbs used by the survey call flow

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

type twimlSay struct {
	XMLName  xml.Name `xml:"Say"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

type twimlGather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr"`
	Language      string   `xml:"language,attr,omitempty"`
	Action        string   `xml:"action,attr"`
	Method        string   `xml:"method,attr"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`
	Say           twimlSay
}

type twimlRedirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr"`
	URL     string   `xml:",chardata"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

func renderTwiML(verbs ...any) ([]byte, error) {
	body, err := xml.Marshal(twimlResponse{Verbs: verbs})
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

// askTwiML speaks prompt inside a speech Gather. If the caller says nothing
// the call is redirected to retryURL.
func askTwiML(locale, prompt, actionURL, retryURL string) ([]byte, error) {
	return renderTwiML(
		twimlGather{
			Input:         "speech",
			Language:      locale,
			Action:        actionURL,
			Method:        "POST",
			SpeechTimeout: "auto",
			Say:           twimlSay{Language: locale, Text: prompt},
		},
		twimlRedirect{Method: "POST", URL: retryURL},
	)
}

func hangupTwiML(locale, farewell string) ([]byte, error) {
	if farewell == "" {
		return renderTwiML(twimlHangup{})
	}
	return renderTwiML(twimlSay{Language: locale, Text: farewell}, twimlHangup{})
}

// spokenPrompt appends the answer options to the question text
func spokenPrompt(text string, options []string) string {
	text = speakable(text)
	if len(options) == 0 {
		return text
	}
	return text + " " + strings.Join(options, ", ") + "."
}
