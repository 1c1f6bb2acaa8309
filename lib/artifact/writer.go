// Package artifact persists the outcome of a fetch: exactly one file
// per invocation, either a result set or a debug bundle.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jaisonv/cad-calls/lib/scrapers/policetocitizen"
)

const timestampLayout = "20060102_150405"

// bound on the raw body kept in a debug bundle
const maxDebugBody = 64 * 1024

type Writer struct {
	dir string
}

func NewWriter(dir string) (Writer, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return Writer{}, err
	}
	return Writer{dir: dir}, nil
}

// DebugBundle is the diagnostic artifact written when a fetch fails,
// enough to diagnose a failing department without re-running the tool.
type DebugBundle struct {
	Request       policetocitizen.RequestSpec `json:"request"`
	Method        string                      `json:"transportMethod"`
	Failure       policetocitizen.FailureKind `json:"failure"`
	Reason        string                      `json:"reason"`
	Status        int                         `json:"status,omitempty"`
	Headers       map[string][]string         `json:"responseHeaders,omitempty"`
	Body          string                      `json:"body,omitempty"`
	BodyTruncated bool                        `json:"bodyTruncated,omitempty"`
	Written       time.Time                   `json:"writtenAt"`
}

// WriteResult serializes a result set. explicitPath, when non-empty,
// is used verbatim; otherwise a unique generated name embeds the site,
// agency and timestamp.
func (w Writer) WriteResult(set *policetocitizen.ResultSet, explicitPath string) (string, error) {
	path := explicitPath
	if path == "" {
		path = w.uniquePath(fmt.Sprintf(
			"%s_cadcalls_%d_%s.json",
			set.Site, set.AgencyId, set.Retrieved.Format(timestampLayout),
		))
	}

	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return "", err
	}
	err = os.WriteFile(path, data, 0644)
	if err != nil {
		return "", err
	}
	return path, nil
}

// WriteDebug serializes a debug bundle for a classified failure. The
// naming scheme is distinct from result files so the two never collide.
func (w Writer) WriteDebug(site string, spec policetocitizen.RequestSpec, failure *policetocitizen.Failure) (string, error) {
	bundle := DebugBundle{
		Request: spec,
		Method:  failure.Method.String(),
		Failure: failure.Kind,
		Reason:  failure.Reason,
		Status:  failure.Status,
		Headers: failure.Headers,
		Body:    failure.Body,
		Written: time.Now(),
	}
	if len(bundle.Body) > maxDebugBody {
		bundle.Body = bundle.Body[:maxDebugBody]
		bundle.BodyTruncated = true
	}

	path := w.uniquePath(fmt.Sprintf(
		"%s_debug_%d_%s.json",
		site, spec.AgencyId, bundle.Written.Format(timestampLayout),
	))

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return "", err
	}
	err = os.WriteFile(path, data, 0644)
	if err != nil {
		return "", err
	}
	return path, nil
}

// uniquePath suffixes a counter when two runs land on the same second,
// prior artifacts are never overwritten.
func (w Writer) uniquePath(name string) string {
	path := filepath.Join(w.dir, name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	ext := filepath.Ext(name)
	stem := name[:len(name)-len(ext)]
	for i := 1; ; i++ {
		path = filepath.Join(w.dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
	}
}
