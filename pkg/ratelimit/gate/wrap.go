package gate

import "context"

// WrapFunc returns a function that admits through a before calling fn.
func WrapFunc(a Admitter, fn func()) func() {
	return func() {
		a.Admit()
		fn()
	}
}

// Wrap returns a function with fn's signature that admits through a first.
// Results and errors from fn are returned unchanged.
func Wrap[R any](a Admitter, fn func() (R, error)) func() (R, error) {
	return func() (R, error) {
		a.Admit()
		return fn()
	}
}

// Wrap1 is Wrap for single-argument functions.
func Wrap1[A, R any](a Admitter, fn func(A) (R, error)) func(A) (R, error) {
	return func(arg A) (R, error) {
		a.Admit()
		return fn(arg)
	}
}

// Wrap2 is Wrap for two-argument functions.
func Wrap2[A, B, R any](a Admitter, fn func(A, B) (R, error)) func(A, B) (R, error) {
	return func(arg1 A, arg2 B) (R, error) {
		a.Admit()
		return fn(arg1, arg2)
	}
}

// WrapContext wraps a context-aware function. Admission honors ctx; if ctx
// ends before the caller is admitted, fn is not called and the zero R is
// returned with ctx.Err().
func WrapContext[A, R any](a Admitter, fn func(context.Context, A) (R, error)) func(context.Context, A) (R, error) {
	return func(ctx context.Context, arg A) (R, error) {
		if err := a.AdmitContext(ctx); err != nil {
			var zero R
			return zero, err
		}
		return fn(ctx, arg)
	}
}

// Do admits through a and then runs fn, returning its error unchanged.
func Do(ctx context.Context, a Admitter, fn func(context.Context) error) error {
	if err := a.AdmitContext(ctx); err != nil {
		return err
	}
	return fn(ctx)
}
