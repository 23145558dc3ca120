// Package server contains misc server utilities.
package server

import (
	"encoding/json"
	"fmt"
	"go/types"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi"
)

// BoolT is a struct with a bool field
type BoolT struct {
	Bool bool `json:"bool"`
}

// IntT is a struct with an int field
type IntT struct {
	Int int `json:"int"`
}

// UintT is a struct with a uint64 field, used for masks
type UintT struct {
	Uint uint64 `json:"uint"`
}

// FloatT is a struct with a float64 field
type FloatT struct {
	F64 float64 `json:"f64"`
}

// StrT is a struct with a string field
type StrT struct {
	Str string `json:"str"`
}

// HumanPayload is a struct containing the basic types a device may return.
// T selects which field is sent.
type HumanPayload struct {
	T types.BasicKind

	Bool   bool
	Int    int
	Uint   uint64
	Float  float64
	String string
}

// EncodeAndRespond writes the selected field of the payload as JSON,
// {"bool": v}, {"int": v}, {"uint": v}, {"f64": v} or {"str": v}
func (hp HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	var v interface{}
	switch hp.T {
	case types.Bool:
		v = BoolT{hp.Bool}
	case types.Int:
		v = IntT{hp.Int}
	case types.Uint64:
		v = UintT{hp.Uint}
	case types.Float64:
		v = FloatT{hp.Float}
	case types.String:
		v = StrT{hp.String}
	default:
		http.Error(w, fmt.Sprintf("payload kind %d cannot be encoded", hp.T), http.StatusInternalServerError)
		return
	}
	ReplyJSON(w, v)
}

// ReplyJSON encodes v as the JSON body of a 200 response
func ReplyJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fstr := fmt.Sprintf("error encoding data to json %q", err)
		http.Error(w, fstr, http.StatusInternalServerError)
	}
}

// MethodPath is a struct containing an HTTP method and a URL path
type MethodPath struct {
	Method, Path string
}

// RouteTable maps method/path pairs to handlers
type RouteTable map[MethodPath]http.HandlerFunc

// Endpoints lists the paths in the table, sorted, each once
func (rt RouteTable) Endpoints() []string {
	seen := make(map[string]struct{}, len(rt))
	routes := make([]string, 0, len(rt))
	for k := range rt {
		if _, ok := seen[k.Path]; ok {
			continue
		}
		seen[k.Path] = struct{}{}
		routes = append(routes, k.Path)
	}
	sort.Strings(routes)
	return routes
}

// Bind adds every route in the table to r, plus an "/endpoints" route which
// lists them
func (rt RouteTable) Bind(r chi.Router) {
	for mp, fcn := range rt {
		r.MethodFunc(mp.Method, mp.Path, fcn)
	}
	r.Get("/endpoints", func(w http.ResponseWriter, req *http.Request) {
		ReplyJSON(w, rt.Endpoints())
	})
}

// HTTPer is an object which exposes a route table
type HTTPer interface {
	RT() RouteTable
}

// SubMuxSanitize converts an endpoint such as "omc/v230" or "/omc/v230/*"
// to the "/omc/v230" form chi's Mount expects
func SubMuxSanitize(s string) string {
	s = strings.TrimSuffix(s, "*")
	s = strings.Trim(s, "/")
	return "/" + s
}
