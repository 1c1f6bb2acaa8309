package policetocitizen

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildRequestSpec(t *testing.T) {
	spec, err := BuildRequestSpec(386, true, false, 5, 0, "", TransportPost)
	require.NoError(t, err)
	require.Equal(t, 386, spec.AgencyId)
	require.Greater(t, spec.Take, 0)
	require.GreaterOrEqual(t, spec.Skip, 0)
	require.True(t, spec.IncludeOpen)
	require.False(t, spec.IncludeClosed)
}

func TestBuildRequestSpecBothFlagsFalse(t *testing.T) {
	// the caller's intent passes through unchanged, no default is inferred
	spec, err := BuildRequestSpec(386, false, false, 30, 0, "", TransportPost)
	require.NoError(t, err)
	require.False(t, spec.IncludeOpen)
	require.False(t, spec.IncludeClosed)
}

func TestBuildRequestSpecInvalid(t *testing.T) {
	testCases := []struct {
		name     string
		agencyId int
		take     int
		skip     int
	}{
		{"zero take", 386, 0, 0},
		{"negative take", 386, -5, 0},
		{"negative skip", 386, 30, -1},
		{"zero agency", 0, 30, 0},
		{"negative agency", -1, 30, 0},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			_, err := BuildRequestSpec(test.agencyId, true, false, test.take, test.skip, "", TransportPost)
			require.Error(t, err)

			var failure *Failure
			require.True(t, errors.As(err, &failure))
			require.Equal(t, InvalidParameter, failure.Kind)
		})
	}
}

func TestParseTransport(t *testing.T) {
	method, err := ParseTransport("POST")
	require.NoError(t, err)
	require.Equal(t, TransportPost, method)

	method, err = ParseTransport("GET")
	require.NoError(t, err)
	require.Equal(t, TransportGet, method)

	method, err = ParseTransport("")
	require.NoError(t, err)
	require.Equal(t, TransportPost, method)

	_, err = ParseTransport("PATCH")
	require.Error(t, err)
}

func TestRequestBodyKeys(t *testing.T) {
	spec, err := BuildRequestSpec(386, true, false, 5, 10, "theft", TransportPost)
	require.NoError(t, err)

	body := requestBody(spec, DefaultFieldNames().Body)

	require.Equal(t, true, body["IncludeOpenCalls"])
	require.Equal(t, false, body["IncludeClosedCalls"])
	require.Equal(t, true, body["IncludeCount"])

	paging, ok := body["PagingOptions"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, 5, paging["Take"])
	require.Equal(t, 10, paging["Skip"])

	filter, ok := body["FilterOptionsParameters"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "theft", filter["SearchText"])
	require.Empty(t, filter["Parameters"])

	// the payload must survive JSON encoding as-is
	_, err = json.Marshal(body)
	require.NoError(t, err)
}

func TestRequestBodyRenamedKeys(t *testing.T) {
	fields := DefaultFieldNames().Body
	fields.IncludeOpen = "ShowActive"
	fields.IncludeClosed = "ShowResolved"

	spec, err := BuildRequestSpec(42, true, true, 30, 0, "", TransportPost)
	require.NoError(t, err)

	body := requestBody(spec, fields)
	require.Equal(t, true, body["ShowActive"])
	require.Equal(t, true, body["ShowResolved"])
	require.NotContains(t, body, "IncludeOpenCalls")
}

func TestRequestQuery(t *testing.T) {
	spec, err := BuildRequestSpec(386, true, false, 5, 0, "fire", TransportGet)
	require.NoError(t, err)

	query := requestQuery(spec, DefaultFieldNames().Query)
	require.Equal(t, "true", query.Get("includeOpen"))
	require.Equal(t, "false", query.Get("includeClosed"))
	require.Equal(t, "5", query.Get("take"))
	require.Equal(t, "0", query.Get("skip"))
	require.Equal(t, "fire", query.Get("searchText"))
}
