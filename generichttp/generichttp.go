// Package generichttp wraps the getters and setters of VME modules in HTTP
// handlers.  Values travel as the single-field JSON objects of the server
// package, {"bool": v}, {"int": v}, {"uint": v}, {"f64": v} or {"str": v}.
package generichttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"go/types"
	"net/http"

	"github.com/nasa-jpl/golab-vme/server"
	"github.com/nasa-jpl/golab-vme/vme"
)

// Status maps a driver error to an HTTP status code
func Status(err error) int {
	var merr *vme.MacroError
	switch {
	case errors.Is(err, vme.ErrUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, vme.ErrNotMapped), errors.Is(err, vme.ErrNilRegion):
		return http.StatusServiceUnavailable
	case errors.Is(err, vme.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, vme.ErrMacroBusy):
		return http.StatusConflict
	case errors.As(err, &merr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Fail replies with err and the status Status picks for it
func Fail(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), Status(err))
}

// GetFloat calls a float-getting function and returns the response
// as json {'f64': value}
func GetFloat(fcn func() (float64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := fcn()
		if err != nil {
			Fail(w, err)
			return
		}
		hp := server.HumanPayload{T: types.Float64, Float: f}
		hp.EncodeAndRespond(w, r)
	}
}

// GetInt calls an int-getting function and returns the response
// as json {'int': value}
func GetInt(fcn func() (int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		i, err := fcn()
		if err != nil {
			Fail(w, err)
			return
		}
		hp := server.HumanPayload{T: types.Int, Int: i}
		hp.EncodeAndRespond(w, r)
	}
}

// GetUint16 calls a register-getting function and returns the response
// as json {'int': value}
func GetUint16(fcn func() (uint16, error)) http.HandlerFunc {
	return GetInt(func() (int, error) {
		v, err := fcn()
		return int(v), err
	})
}

// SetUint16 parses a JSON input of {'int': value} and calls fcn with it.
// Values outside 0..65535 are rejected.
func SetUint16(fcn func(uint16) error) http.HandlerFunc {
	return SetInt(func(i int) error {
		if i < 0 || i > 0xFFFF {
			return fmt.Errorf("%w: %d does not fit in a 16-bit register", vme.ErrInvalidArgument, i)
		}
		return fcn(uint16(i))
	})
}

// SetInt parses a JSON input of {'int': value} and
// calls fcn with it
func SetInt(fcn func(int) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := server.IntT{}
		err := json.NewDecoder(r.Body).Decode(&f)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		err = fcn(f.Int)
		if err != nil {
			Fail(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetUint calls a mask-getting function and returns the response
// as json {'uint': value}
func GetUint(fcn func() (uint64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := fcn()
		if err != nil {
			Fail(w, err)
			return
		}
		hp := server.HumanPayload{T: types.Uint64, Uint: u}
		hp.EncodeAndRespond(w, r)
	}
}

// SetUint parses a JSON input of {'uint': value} and
// calls fcn with it
func SetUint(fcn func(uint64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u := server.UintT{}
		err := json.NewDecoder(r.Body).Decode(&u)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		err = fcn(u.Uint)
		if err != nil {
			Fail(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetString calls a string-getting function and returns the response
// as json {'str': value}
func GetString(fcn func() (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := fcn()
		if err != nil {
			Fail(w, err)
			return
		}
		hp := server.HumanPayload{T: types.String, String: s}
		hp.EncodeAndRespond(w, r)
	}
}

// SetString parses a JSON input of {'str': value} and
// calls fcn with it
func SetString(fcn func(string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := server.StrT{}
		err := json.NewDecoder(r.Body).Decode(&s)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		err = fcn(s.Str)
		if err != nil {
			Fail(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetBool calls a bool-getting function and returns the response
// as json {'bool': value}
func GetBool(fcn func() (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := fcn()
		if err != nil {
			Fail(w, err)
			return
		}
		hp := server.HumanPayload{T: types.Bool, Bool: b}
		hp.EncodeAndRespond(w, r)
	}
}

// SetBool parses a JSON input of {'bool': value} and
// calls fcn with it
func SetBool(fcn func(bool) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := server.BoolT{}
		err := json.NewDecoder(r.Body).Decode(&b)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		err = fcn(b.Bool)
		if err != nil {
			Fail(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetJSON calls fcn and returns its result encoded as JSON
func GetJSON[T any](fcn func() (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := fcn()
		if err != nil {
			Fail(w, err)
			return
		}
		server.ReplyJSON(w, v)
	}
}

// SetJSON decodes the request body into a T and calls fcn with it
func SetJSON[T any](fcn func(T) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var v T
		err := json.NewDecoder(r.Body).Decode(&v)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := fcn(v); err != nil {
			Fail(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
