/*Package highland exposes Highland Technology VME modules over HTTP.

Each wrapper owns a mutex which every route takes for the duration of the
request, so one module is never driven by two clients at once.  Channel
numbers are URL parameters, e.g. GET /channel/12/voltage.
*/
package highland

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi"
	"github.com/nasa-jpl/golab-vme/server"
	"github.com/nasa-jpl/golab-vme/vme"
)

// serialize wraps every handler in rt so that it holds mu while it runs
func serialize(mu *sync.Mutex, rt server.RouteTable) {
	for k, fcn := range rt {
		fcn := fcn
		rt[k] = func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			defer mu.Unlock()
			fcn(w, r)
		}
	}
}

// urlInt parses the URL parameter key as a non-negative integer
func urlInt(r *http.Request, key string) (int, error) {
	s := chi.URLParam(r, key)
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("%w: %s %q is not a channel number", vme.ErrInvalidArgument, key, s)
	}
	return i, nil
}

// reader collects the first error of a sequence of register reads
type reader struct {
	err error
}

func (rd *reader) u16(fcn func() (uint16, error)) uint16 {
	if rd.err != nil {
		return 0
	}
	v, err := fcn()
	rd.err = err
	return v
}

func (rd *reader) str(fcn func() (string, error)) string {
	if rd.err != nil {
		return ""
	}
	s, err := fcn()
	rd.err = err
	return s
}
