package policetocitizen

import (
	"fmt"
	"net/url"
	"strconv"
)

// Transport selects how the request parameters are put on the wire.
// The portal software is deployed inconsistently: most agencies accept
// a JSON POST body, some only respond to a GET query string.
type Transport int

const (
	TransportPost Transport = iota
	TransportGet
)

func (t Transport) String() string {
	if t == TransportGet {
		return "GET"
	}
	return "POST"
}

// ParseTransport maps a configured request_method value to a Transport.
func ParseTransport(method string) (Transport, error) {
	switch method {
	case "", "POST", "post":
		return TransportPost, nil
	case "GET", "get":
		return TransportGet, nil
	}
	return TransportPost, fmt.Errorf("unknown request_method %q", method)
}

// RequestSpec is the fully resolved parameter set for one call to the
// list-calls endpoint. AgencyId is fixed once built.
type RequestSpec struct {
	AgencyId      int       `json:"agency_id"`
	IncludeOpen   bool      `json:"include_open"`
	IncludeClosed bool      `json:"include_closed"`
	Take          int       `json:"take"`
	Skip          int       `json:"skip"`
	SearchText    string    `json:"search_text"`
	Method        Transport `json:"-"`
}

// BuildRequestSpec validates the caller's parameters before any network
// I/O happens. Both include flags may be false, the server decides what
// that means.
func BuildRequestSpec(agencyId int, includeOpen, includeClosed bool, take, skip int, searchText string, method Transport) (RequestSpec, error) {
	if agencyId <= 0 {
		return RequestSpec{}, &Failure{
			Kind:   InvalidParameter,
			Reason: fmt.Sprintf("agency id must be a positive integer, got %d", agencyId),
		}
	}
	if take <= 0 {
		return RequestSpec{}, &Failure{
			Kind:   InvalidParameter,
			Reason: fmt.Sprintf("take must be a positive integer, got %d", take),
		}
	}
	if skip < 0 {
		return RequestSpec{}, &Failure{
			Kind:   InvalidParameter,
			Reason: fmt.Sprintf("skip must not be negative, got %d", skip),
		}
	}
	return RequestSpec{
		AgencyId:      agencyId,
		IncludeOpen:   includeOpen,
		IncludeClosed: includeClosed,
		Take:          take,
		Skip:          skip,
		SearchText:    searchText,
		Method:        method,
	}, nil
}

// BodyFields names the keys of the JSON POST payload. Different
// deployments of the portal software expect slightly different key
// sets, so none of these are hardcoded at the call site.
type BodyFields struct {
	IncludeOpen   string `json:"include_open"`
	IncludeClosed string `json:"include_closed"`
	SearchText    string `json:"search_text"`
	SortBy        string `json:"sort_by"`
}

// QueryFields names the keys of the GET query string encoding.
type QueryFields struct {
	IncludeOpen   string `json:"include_open"`
	IncludeClosed string `json:"include_closed"`
	Take          string `json:"take"`
	Skip          string `json:"skip"`
	SearchText    string `json:"search_text"`
}

// ResponseFields names the keys the classifier looks for in a success
// payload.
type ResponseFields struct {
	Records    string `json:"records"`
	Total      string `json:"total"`
	AgencyName string `json:"agency_name"`
}

type FieldNames struct {
	Body     BodyFields     `json:"body"`
	Query    QueryFields    `json:"query"`
	Response ResponseFields `json:"response"`
}

// DefaultFieldNames returns the key set used by Tyler Police-to-Citizen
// deployments.
func DefaultFieldNames() FieldNames {
	return FieldNames{
		Body: BodyFields{
			IncludeOpen:   "IncludeOpenCalls",
			IncludeClosed: "IncludeClosedCalls",
			SearchText:    "SearchText",
			SortBy:        "StartTime",
		},
		Query: QueryFields{
			IncludeOpen:   "includeOpen",
			IncludeClosed: "includeClosed",
			Take:          "take",
			Skip:          "skip",
			SearchText:    "searchText",
		},
		Response: ResponseFields{
			Records:    "CADCalls",
			Total:      "Total",
			AgencyName: "Agency",
		},
	}
}

// requestBody renders the spec as the portal's POST payload. The nested
// shape (PagingOptions, FilterOptionsParameters) is fixed across
// deployments, only the leaf keys vary.
func requestBody(spec RequestSpec, fields BodyFields) map[string]any {
	return map[string]any{
		fields.IncludeOpen:   spec.IncludeOpen,
		fields.IncludeClosed: spec.IncludeClosed,
		"IncludeCount":       true,
		"PagingOptions": map[string]any{
			"SortOptions": []map[string]any{
				{
					"Name":          fields.SortBy,
					"SortDirection": "Descending",
					"Sequence":      1,
				},
			},
			"Take": spec.Take,
			"Skip": spec.Skip,
		},
		"FilterOptionsParameters": map[string]any{
			"IntersectionSearch": true,
			fields.SearchText:    spec.SearchText,
			// the portal expects this empty even when SearchText is set
			"Parameters": []any{},
		},
	}
}

// requestQuery renders the spec as the flattened GET encoding.
func requestQuery(spec RequestSpec, fields QueryFields) url.Values {
	query := url.Values{}
	query.Set(fields.IncludeOpen, strconv.FormatBool(spec.IncludeOpen))
	query.Set(fields.IncludeClosed, strconv.FormatBool(spec.IncludeClosed))
	query.Set(fields.Take, strconv.Itoa(spec.Take))
	query.Set(fields.Skip, strconv.Itoa(spec.Skip))
	query.Set(fields.SearchText, spec.SearchText)
	return query
}
