package sandbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/goleak"
)

func startExecutor(t *testing.T, st *State, queueSize int) (*Executor, func()) {
	t.Helper()
	ex := NewExecutor(st, queueSize)
	stopped := make(chan struct{})
	go func() {
		ex.Run(context.Background())
		close(stopped)
	}()
	return ex, func() {
		ex.Close()
		<-stopped
	}
}

func TestExecutorSubmit(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := New()
	defer st.Close()
	ex, stop := startExecutor(t, st, 0)
	defer stop()

	err := ex.Submit(context.Background(), func(L *lua.LState) error {
		return L.DoString(`answer = 6 * 7`)
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	var got lua.LValue
	err = ex.Submit(context.Background(), func(L *lua.LState) error {
		got = L.GetGlobal("answer")
		return nil
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if got != lua.LNumber(42) {
		t.Errorf("answer = %v, want 42", got)
	}
}

func TestExecutorSubmitError(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := New()
	defer st.Close()
	ex, stop := startExecutor(t, st, 0)
	defer stop()

	wantErr := errors.New("candidate failed")
	err := ex.Submit(context.Background(), func(L *lua.LState) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("Submit() error = %v, want %v", err, wantErr)
	}
}

func TestExecutorSerializesConcurrentSubmits(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := New()
	defer st.Close()
	ex, stop := startExecutor(t, st, 0)
	defer stop()

	if err := ex.Submit(context.Background(), func(L *lua.LState) error {
		return L.DoString(`counter = 0`)
	}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	const n = 50
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = ex.Submit(context.Background(), func(L *lua.LState) error {
				return L.DoString(`counter = counter + 1`)
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Submit() #%d error = %v", i, err)
		}
	}

	var counter lua.LValue
	if err := ex.Submit(context.Background(), func(L *lua.LState) error {
		counter = L.GetGlobal("counter")
		return nil
	}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if counter != lua.LNumber(n) {
		t.Errorf("counter = %v, want %d", counter, n)
	}
}

func TestExecutorClosed(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := New()
	defer st.Close()
	ex, stop := startExecutor(t, st, 0)
	stop()

	err := ex.Submit(context.Background(), func(L *lua.LState) error { return nil })
	if !errors.Is(err, ErrExecutorClosed) {
		t.Errorf("Submit() after Close error = %v, want ErrExecutorClosed", err)
	}
}

func TestExecutorCloseWithParkedJob(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := New()
	defer st.Close()

	// No worker is running, so the submitted job sits in the queue with
	// nobody to drain it when Close lands. The submitter must not block
	// forever waiting on its result.
	ex := NewExecutor(st, 1)

	result := make(chan error, 1)
	go func() {
		result <- ex.Submit(context.Background(), func(L *lua.LState) error { return nil })
	}()

	for len(ex.queue) == 0 {
		time.Sleep(time.Millisecond)
	}
	ex.Close()

	select {
	case err := <-result:
		if !errors.Is(err, ErrExecutorClosed) {
			t.Errorf("Submit() error = %v, want ErrExecutorClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Submit() still blocked after Close with no worker")
	}
}

func TestExecutorCloseIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := New()
	defer st.Close()
	ex, stop := startExecutor(t, st, 0)
	stop()
	ex.Close()
	ex.Close()
}

func TestExecutorSubmitContextCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := New()
	defer st.Close()
	ex, stop := startExecutor(t, st, 0)
	defer stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ex.Submit(ctx, func(L *lua.LState) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Submit() with cancelled context error = %v, want context.Canceled", err)
	}
}

func TestExecutorRunStopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := New()
	defer st.Close()

	ex := NewExecutor(st, 0)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		ex.Run(ctx)
		close(stopped)
	}()

	cancel()
	<-stopped

	err := ex.Submit(context.Background(), func(L *lua.LState) error { return nil })
	if !errors.Is(err, ErrExecutorClosed) {
		t.Errorf("Submit() after worker stopped error = %v, want ErrExecutorClosed", err)
	}
}
