package web

// wrapMiddleware creates a new handler by wrapping middleware around a
// final handler. The middleware's are executed in the order they are
// provided.
func wrapMiddleware(mw []Middleware, handler Handler) Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h := mw[i]
		if h != nil {
			handler = h(handler)
		}
	}

	return handler
}
