package policetocitizen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Envelope is the structured payload of a success response after
// classification.
type Envelope struct {
	Calls      []Record
	Total      int
	AgencyName string
}

// headers some WAF products attach to rejected requests
var blockHeaders = []string{
	"X-WAF",
	"CF-Mitigated",
	"X-Sucuri-Block",
	"X-Iinfo",
}

// phrases seen on bot-detection interstitials and rejection pages,
// matched case-insensitively against the response body
var blockPhrases = []string{
	"access denied",
	"request unsuccessful. incapsula",
	"attention required! | cloudflare",
	"the requested url was rejected",
	"pardon our interruption",
	"verify you are a human",
	"enable javascript and cookies to continue",
}

// failureChecks run in order; the first match wins. Block signatures
// come before the generic status check on purpose: a blocked request
// needs different remediation advice than a plain HTTP error, no
// matter what status the WAF chose to respond with.
var failureChecks = []func(status int, headers http.Header, body []byte) *Failure{
	checkBlockSignature,
	checkHttpStatus,
}

// Classify decides the outcome of one transport attempt. It is a pure
// function of the status, headers and body; an empty record list in a
// well-formed payload is a success, not a failure.
func Classify(fields ResponseFields, status int, headers http.Header, body []byte) (*Envelope, *Failure) {
	for _, check := range failureChecks {
		if f := check(status, headers, body); f != nil {
			return nil, f
		}
	}
	return parseEnvelope(fields, status, body)
}

func checkBlockSignature(status int, headers http.Header, body []byte) *Failure {
	for _, name := range blockHeaders {
		if value := headers.Get(name); value != "" {
			return &Failure{
				Kind:    Blocked,
				Status:  status,
				Headers: headers,
				Body:    string(body),
				Reason:  fmt.Sprintf("response carries WAF header %s: %s%s", name, value, blockPageTitle(body)),
			}
		}
	}

	lower := strings.ToLower(string(body))
	for _, phrase := range blockPhrases {
		if strings.Contains(lower, phrase) {
			return &Failure{
				Kind:    Blocked,
				Status:  status,
				Headers: headers,
				Body:    string(body),
				Reason:  fmt.Sprintf("response body matches block signature %q%s", phrase, blockPageTitle(body)),
			}
		}
	}
	return nil
}

// blockPageTitle pulls the <title> off an HTML interstitial so the
// debug bundle names the product that rejected us.
func blockPageTitle(body []byte) string {
	if !bytes.Contains(body, []byte("<")) {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		return ""
	}
	return fmt.Sprintf(" (page title: %q)", title)
}

func checkHttpStatus(status int, headers http.Header, body []byte) *Failure {
	if status >= 200 && status < 300 {
		return nil
	}
	return &Failure{
		Kind:    HttpError,
		Status:  status,
		Headers: headers,
		Body:    string(body),
		Reason:  fmt.Sprintf("portal responded with HTTP %d", status),
	}
}

func parseEnvelope(fields ResponseFields, status int, body []byte) (*Envelope, *Failure) {
	malformed := func(reason string) (*Envelope, *Failure) {
		return nil, &Failure{
			Kind:   MalformedResponse,
			Status: status,
			Body:   string(body),
			Reason: reason,
		}
	}

	// the top-level payload is itself an object whose key order we do
	// not know in advance, so it decodes through the same ordered
	// mapping used for individual records
	var top Record
	err := json.Unmarshal(body, &top)
	if err != nil {
		return malformed(fmt.Sprintf("response body is not a JSON object: %s", err))
	}

	rawList, ok := top.Get(fields.Records)
	if !ok {
		// deployments rename the list field; fall back to the first
		// array-valued field in document order
		for _, key := range top.Keys() {
			raw, _ := top.Get(key)
			if bytes.HasPrefix(bytes.TrimLeft(raw, " \t\r\n"), []byte("[")) {
				rawList = raw
				ok = true
				break
			}
		}
	}
	if !ok {
		return malformed(fmt.Sprintf("no %q field or any other list of records in response", fields.Records))
	}

	var calls []Record
	err = json.Unmarshal(rawList, &calls)
	if err != nil {
		return malformed(fmt.Sprintf("record list failed to parse: %s", err))
	}

	env := &Envelope{
		Calls: calls,
		Total: len(calls),
	}
	if rawTotal, ok := top.Get(fields.Total); ok {
		var total int
		if json.Unmarshal(rawTotal, &total) == nil {
			env.Total = total
		}
	}
	if len(calls) > 0 {
		env.AgencyName = calls[0].Text(fields.AgencyName)
	}
	return env, nil
}
