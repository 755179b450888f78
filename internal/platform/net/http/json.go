package http

import "net/http"

// JSONHandlerNoBody calls fn without parsing a request body and writes the
// result or the error as an envelope
func JSONHandlerNoBody(fn func(*http.Request) (any, error)) Handler {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := fn(r)
		if err != nil {
			RespondError(w, r, err)
			return
		}
		RespondOK(w, r, out)
	}
}
