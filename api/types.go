// Package api holds the wire types of the Subsonic JSON response envelope.
package api

import "encoding/json"

// Status values a server may report in the envelope.
const (
	StatusOK     = "ok"
	StatusFailed = "error"
)

// Root is the top-level JSON document returned by every endpoint.
type Root struct {
	Response Response `json:"subsonic-response"`
}

// Response is the decoded envelope. Fields beyond the ones below are
// endpoint payloads and are not modelled here.
type Response struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Type          string `json:"type,omitempty"`
	ServerVersion string `json:"serverVersion,omitempty"`

	// Servers that omit this field are not OpenSubsonic compliant.
	OpenSubsonic           bool        `json:"openSubsonic"`
	OpenSubsonicExtensions []Extension `json:"openSubsonicExtensions"`

	Error *Error `json:"error,omitempty"`

	// Raw is the undecoded subsonic-response object, payload included.
	Raw json.RawMessage `json:"-"`
}

// Extension is one optional protocol feature and the versions the server supports.
type Extension struct {
	Name     string `json:"name"`
	Versions []int  `json:"versions"`
}

// Error is the failure object servers attach when Status is "error".
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// OK reports whether the server answered with status "ok".
func (r *Response) OK() bool {
	return r != nil && r.Status == StatusOK
}

// Extensions flattens the advertised extension list into name -> versions.
// A name listed twice has its versions merged.
func (r *Response) Extensions() map[string][]int {
	out := make(map[string][]int)
	if r == nil {
		return out
	}
	for _, ext := range r.OpenSubsonicExtensions {
		out[ext.Name] = append(out[ext.Name], ext.Versions...)
	}
	return out
}

// Supports reports whether extension name is advertised at exactly version.
// Names are compared case-sensitively.
func (r *Response) Supports(name string, version int) bool {
	return Supports(r.Extensions(), name, version)
}

// Supports is the lookup used on an already flattened extension table.
func Supports(table map[string][]int, name string, version int) bool {
	for _, v := range table[name] {
		if v == version {
			return true
		}
	}
	return false
}
