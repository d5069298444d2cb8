// Package middleware provides reusable model.Model decorators such as rate
// limiting and tracing. Decorators preserve the structured output capability
// of the model they wrap.
package middleware

import (
	"context"

	"github.com/hupe1980/magentic/model"
)

// Middleware decorates a model.
type Middleware func(model.Model) model.Model

// Chain applies middlewares so that the first one is the outermost wrapper.
func Chain(m model.Model, mws ...Middleware) model.Model {
	for i := len(mws) - 1; i >= 0; i-- {
		m = mws[i](m)
	}
	return m
}

// base forwards Info and the structured output capability to the wrapped model.
type base struct {
	next model.Model
}

func (b base) Info() model.Info { return b.next.Info() }

func (b base) SupportsResponseFormat() bool { return model.SupportsResponseFormat(b.next) }

// failed returns closed channels carrying a single error.
func failed(err error) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response)
	errCh := make(chan error, 1)
	errCh <- err
	close(out)
	close(errCh)
	return out, errCh
}

// forward copies a generation to fresh channels and calls done with the
// terminal error (nil on success) once both source channels are drained.
func forward(
	ctx context.Context,
	respCh <-chan model.Response,
	errCh <-chan error,
	done func(error),
) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, cap(respCh))
	outErr := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(outErr)

		var terminal error
		for respCh != nil || errCh != nil {
			select {
			case resp, ok := <-respCh:
				if !ok {
					respCh = nil
					continue
				}
				select {
				case out <- resp:
				case <-ctx.Done():
					terminal = ctx.Err()
					outErr <- terminal
					done(terminal)
					return
				}
			case err, ok := <-errCh:
				if !ok {
					errCh = nil
					continue
				}
				if err != nil && terminal == nil {
					terminal = err
					outErr <- err
				}
			}
		}
		done(terminal)
	}()

	return out, outErr
}
