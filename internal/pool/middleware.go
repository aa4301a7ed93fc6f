package pool

// Middleware - wraps handlers.
type Middleware[IN any, OUT any] func(HandlerFunc[IN, OUT]) HandlerFunc[IN, OUT]

// Chain - middleware together in FIFO execution order.
func Chain[IN any, OUT any](mws ...Middleware[IN, OUT]) Middleware[IN, OUT] {
	return func(h HandlerFunc[IN, OUT]) HandlerFunc[IN, OUT] {
		for i := len(mws) - 1; i >= 0; i-- {
			h = mws[i](h)
		}
		return h
	}
}
